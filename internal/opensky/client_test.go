package opensky

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"github.com/yegors/co-los/pkg/logger"
)

const sampleBody = `{
  "time": 1700000000,
  "states": [
    ["a1b2c3", "DAL123  ", "United States", 1700000000, 1700000000, -84.42, 33.64, 10668.0, false, 230.5, 87.2, 0.0, null, 10900.0, "1200", false, 0],
    ["d4e5f6", "UAL9    ", "United States", 1700000000, 1700000000, -87.90, 41.97, 3048.0, false, 150.0, 270.0, -5.0, null, null, "1200", false, 0],
    ["0a0b0c", "", "Germany", 1700000000, 1700000000, null, 50.0, 1000.0, false, 100.0, 10.0, 0.0, null, 1000.0, null, false, 0],
    ["short", "BAW1", "United Kingdom"]
  ]
}`

func TestParseStates(t *testing.T) {
	resp, err := ParseStates([]byte(sampleBody))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !resp.Time.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Time = %v", resp.Time)
	}
	if resp.Total != 4 {
		t.Errorf("Total = %d, want 4", resp.Total)
	}
	if len(resp.Aircraft) != 2 {
		t.Fatalf("Got %d aircraft, want 2", len(resp.Aircraft))
	}

	dal := resp.Aircraft[0]
	if dal.ICAO24 != "a1b2c3" || dal.Callsign != "DAL123" || dal.Carrier != "DAL" {
		t.Errorf("Unexpected identity: %+v", dal)
	}
	if dal.Latitude != 33.64 || dal.Longitude != -84.42 {
		t.Errorf("Unexpected position: %+v", dal)
	}
	if dal.GeoAltitude != 10900 || dal.BaroAltitude != 10668 {
		t.Errorf("Unexpected altitudes: %+v", dal)
	}
	if dal.Velocity != 230.5 || dal.Heading != 87.2 || dal.OriginCountry != "United States" {
		t.Errorf("Unexpected kinematics: %+v", dal)
	}

	// Null geometric altitude falls back to barometric
	if ual := resp.Aircraft[1]; ual.GeoAltitude != 3048 || ual.Carrier != "UAL" {
		t.Errorf("Unexpected fallback: %+v", ual)
	}
}

func TestParseStatesNullStates(t *testing.T) {
	resp, err := ParseStates([]byte(`{"time": 5, "states": null}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Aircraft == nil || len(resp.Aircraft) != 0 {
		t.Errorf("Expected empty aircraft, got %v", resp.Aircraft)
	}
}

func TestParseStatesInvalid(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2,3]`, `{"states": [`} {
		if _, err := ParseStates([]byte(body)); err == nil {
			t.Errorf("Expected error for %q", body)
		}
	}
}

func TestParseStateVector(t *testing.T) {
	tests := []struct {
		name   string
		vector string
		ok     bool
	}{
		{"too short", `["abc", "DAL1", "US", 0, 0, 1, 2, 3, false, 4]`, false},
		{"null latitude", `["abc", "DAL1", "US", 0, 0, 1, null, 3, false, 4, 5]`, false},
		{"not array", `{"icao24": "abc"}`, false},
		{"empty icao", `["", "DAL1", "US", 0, 0, 1, 2, 3, false, 4, 5]`, false},
		{"minimal", `["abc", null, "US", 0, 0, 1, 2, null, true, null, null]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := ParseStateVector(gjson.Parse(tt.vector))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && tt.name == "minimal" {
				if a.Callsign != "" || a.Carrier != "" || a.GeoAltitude != 0 || !a.OnGround {
					t.Errorf("Unexpected defaults: %+v", a)
				}
			}
		})
	}
}

func testClient(url string, retries int) *Client {
	return NewClient(Options{
		URL:            url,
		Timeout:        2 * time.Second,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	}, logger.Nop())
}

func TestFetchStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept header, got %q", r.Header.Get("Accept"))
		}
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("Expected anonymous request")
		}
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	resp, err := testClient(server.URL, 0).FetchStates(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Aircraft) != 2 {
		t.Errorf("Got %d aircraft, want 2", len(resp.Aircraft))
	}
}

func TestFetchStatesBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "pilot" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"time": 1, "states": []}`))
	}))
	defer server.Close()

	client := NewClient(Options{URL: server.URL, Username: "pilot", Password: "secret", Timeout: time.Second}, logger.Nop())
	if _, err := client.FetchStates(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestFetchStatesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(sampleBody))
		}
	}))
	defer server.Close()

	resp, err := testClient(server.URL, 3).FetchStates(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
	if len(resp.Aircraft) != 2 {
		t.Errorf("Got %d aircraft, want 2", len(resp.Aircraft))
	}
}

func TestFetchStatesDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := testClient(server.URL, 3).FetchStates(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Errorf("Expected StatusError 403, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestFetchStatesGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := testClient(server.URL, 2).FetchStates(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestFetchStatesContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testClient(server.URL, 2).FetchStates(ctx); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":     0,
		"5":    5 * time.Second,
		"-1":   0,
		"soon": 0,
		"120":  2 * time.Minute,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
