package opensky

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/pkg/logger"
	"golang.org/x/time/rate"
)

// Options configures a Client
type Options struct {
	URL                string
	Username           string
	Password           string
	Timeout            time.Duration
	MaxRetries         int
	InitialBackoff     time.Duration
	MinRequestInterval time.Duration
}

// Client is responsible for fetching state vectors from the OpenSky API
type Client struct {
	httpClient     *http.Client
	url            string
	username       string
	password       string
	maxRetries     int
	initialBackoff time.Duration
	limiter        *rate.Limiter
	logger         *logger.Logger
}

// StatesResponse is a parsed /states/all response
type StatesResponse struct {
	Time     time.Time
	Total    int // state vectors in the payload, valid or not
	Aircraft []aircraft.Aircraft
}

// StatusError is returned for non-200 responses
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient creates a new OpenSky client
func NewClient(opts Options, logger *logger.Logger) *Client {
	limit := rate.Inf
	if opts.MinRequestInterval > 0 {
		limit = rate.Every(opts.MinRequestInterval)
	}

	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		url:            opts.URL,
		username:       opts.Username,
		password:       opts.Password,
		maxRetries:     opts.MaxRetries,
		initialBackoff: backoff,
		limiter:        rate.NewLimiter(limit, 1),
		logger:         logger.Named("opensky-client"),
	}
}

// FetchStates fetches and parses the current state vectors
func (c *Client) FetchStates(ctx context.Context) (*StatesResponse, error) {
	retryDelay := c.initialBackoff

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := retryDelay
			if se, ok := lastErr.(*StatusError); ok && se.RetryAfter > 0 {
				wait = se.RetryAfter
			}

			c.logger.Warn("Retrying OpenSky request",
				logger.Int("attempt", attempt),
				logger.Int("max_retries", c.maxRetries),
				logger.Duration("wait", wait),
				logger.Error(lastErr),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				retryDelay *= 2
			}
		}

		body, err := c.fetchOnce(ctx)
		if err == nil {
			return c.parse(body)
		}
		lastErr = err

		if se, ok := err.(*StatusError); ok && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed to fetch states after %d attempts: %w", c.maxRetries+1, lastErr)
}

// fetchOnce performs a single rate-limited request and returns the body
func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug("Fetching OpenSky states",
		logger.String("url", c.url),
		logger.Bool("authenticated", c.username != ""),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) parse(body []byte) (*StatesResponse, error) {
	states, err := ParseStates(body)
	if err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.Error("Failed to parse OpenSky response",
			logger.Error(err),
			logger.String("body", bodyPreview),
		)
		return nil, err
	}

	c.logger.Debug("Successfully fetched OpenSky states",
		logger.Int("state_count", states.Total),
		logger.Int("aircraft_count", len(states.Aircraft)),
		logger.Time("source_time", states.Time),
	)
	return states, nil
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
