package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/opensky"
	"github.com/yegors/co-los/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Source provides fresh state vectors
type Source interface {
	FetchStates(ctx context.Context) (*opensky.StatesResponse, error)
}

// Snapshot is an immutable set of aircraft positions observed together.
// The Aircraft slice is shared between readers and must not be modified.
type Snapshot struct {
	ID         string
	Aircraft   []aircraft.Aircraft
	FetchedAt  time.Time
	SourceTime time.Time
}

// IsZero reports whether no snapshot has been taken yet
func (s Snapshot) IsZero() bool {
	return s.FetchedAt.IsZero()
}

// Status describes the health of the feed
type Status struct {
	LastAttempt   time.Time
	LastSuccess   time.Time
	LastError     string
	AircraftCount int
	Healthy       bool
}

// Service keeps the latest snapshot and refreshes it when stale
type Service struct {
	source          Source
	refreshInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time

	mu          sync.RWMutex
	current     Snapshot
	lastAttempt time.Time
	lastErr     error

	group          singleflight.Group
	changeDetector *ChangeDetector

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a new snapshot service
func NewService(source Source, refreshInterval time.Duration, logger *logger.Logger) *Service {
	return &Service{
		source:          source,
		refreshInterval: refreshInterval,
		logger:          logger.Named("snapshot"),
		now:             time.Now,
		changeDetector:  NewChangeDetector(logger),
		stopCh:          make(chan struct{}),
	}
}

// Current returns the latest snapshot, refreshing it first when it is
// missing or older than the refresh interval. When a refresh fails the
// previous snapshot is returned.
func (s *Service) Current(ctx context.Context) Snapshot {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if !current.IsZero() && s.now().Sub(current.FetchedAt) < s.refreshInterval {
		s.logger.Debug("Returning cached snapshot",
			logger.Duration("age", s.now().Sub(current.FetchedAt)),
		)
		return current
	}

	snap, _ := s.Refresh(ctx)
	return snap
}

// Refresh fetches a new snapshot. Concurrent callers share one fetch. On
// failure the previous snapshot is returned along with the error.
//
// The shared fetch is not bound to any one caller: a caller whose ctx ends
// stops waiting and gets the previous snapshot, while the fetch carries on
// for the others.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Val.(Snapshot), res.Err
	case <-ctx.Done():
		s.logger.Debug("Caller stopped waiting for refresh", logger.Error(ctx.Err()))
		return s.latest(), ctx.Err()
	}
}

func (s *Service) latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) refresh(ctx context.Context) (Snapshot, error) {
	started := s.now()
	s.logger.Info("Refreshing aircraft snapshot")

	resp, err := s.source.FetchStates(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAttempt = started
	if err != nil {
		s.lastErr = err
		s.logger.Error("Failed to refresh snapshot, keeping previous",
			logger.Error(err),
			logger.Int("stale_aircraft_count", len(s.current.Aircraft)),
		)
		return s.current, err
	}
	s.lastErr = nil

	snap := Snapshot{
		ID:         uuid.NewString(),
		Aircraft:   resp.Aircraft,
		FetchedAt:  s.now(),
		SourceTime: resp.Time,
	}
	if snap.Aircraft == nil {
		snap.Aircraft = []aircraft.Aircraft{}
	}
	s.current = snap

	changes := s.changeDetector.DetectChanges(snap.Aircraft)
	s.logger.Info("Snapshot refreshed",
		logger.String("snapshot_id", snap.ID),
		logger.Int("aircraft_count", len(snap.Aircraft)),
		logger.Int("added", changes.Added),
		logger.Int("removed", changes.Removed),
		logger.Duration("duration", s.now().Sub(started)),
	)
	return snap, nil
}

// Status returns the feed status
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		LastAttempt:   s.lastAttempt,
		LastSuccess:   s.current.FetchedAt,
		AircraftCount: len(s.current.Aircraft),
		Healthy:       s.lastErr == nil && !s.current.IsZero(),
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Start keeps the snapshot fresh in the background. The first refresh runs
// on the loop goroutine, so Start returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("Starting snapshot refresh loop",
		logger.Duration("refresh_interval", s.refreshInterval),
	)

	s.wg.Add(1)
	go s.refreshLoop(ctx)
}

// Stop stops the background loop started by Start. It is safe to call
// more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping snapshot refresh loop")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Initial snapshot failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Refresh(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
