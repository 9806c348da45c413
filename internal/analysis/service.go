package analysis

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/connectivity"
	"github.com/yegors/co-los/internal/distance"
	"github.com/yegors/co-los/internal/geo"
	"github.com/yegors/co-los/internal/snapshot"
	"github.com/yegors/co-los/pkg/logger"
)

// RangeResolver supplies carrier ranges and the tracked carrier set
type RangeResolver interface {
	ResolveRanges(selected []string, overrides map[string]float64) connectivity.RangeTable
	Codes() map[string]bool
}

// Options configures a Service
type Options struct {
	MaxDistanceRecords int
	DistanceBinsKm     []float64
	CacheSize          int
	CacheTTL           time.Duration
}

// DistancesResult is the pairwise distance summary for a selection
type DistancesResult struct {
	Distances     []distance.Record `json:"distances"`
	AircraftCount int               `json:"aircraft_count"`
	TotalPairs    int               `json:"total_pairs"`
	Bins          map[string]int    `json:"bins"`
	LastUpdate    *time.Time        `json:"last_update"`
}

// CommunicationResult holds hop counts for a selection
type CommunicationResult struct {
	connectivity.HopCounts
	AircraftCount int        `json:"aircraft_count"`
	LastUpdate    *time.Time `json:"last_update"`
}

// GraphResult holds the renderable graph for a selection
type GraphResult struct {
	connectivity.GraphView
	AircraftCount int        `json:"aircraft_count"`
	LastUpdate    *time.Time `json:"last_update"`
}

// AircraftResult lists aircraft of a snapshot
type AircraftResult struct {
	Aircraft   []aircraft.Aircraft `json:"aircraft"`
	LastUpdate *time.Time          `json:"last_update"`
	TotalCount int                 `json:"total_count"`
}

// AircraftFilter narrows an aircraft listing. With no carriers the tracked
// carriers are used. A positive RadiusNM keeps aircraft within that many
// nautical miles of (Latitude, Longitude).
type AircraftFilter struct {
	Carriers  []string
	Latitude  float64
	Longitude float64
	RadiusNM  float64
}

// Service runs analyses over snapshots and memoises the results
type Service struct {
	ranges RangeResolver
	opts   Options
	bins   []distance.Bin
	cache  *expirable.LRU[string, any]
	logger *logger.Logger
}

// NewService creates a new analysis service. A zero CacheSize disables
// memoisation.
func NewService(ranges RangeResolver, opts Options, logger *logger.Logger) *Service {
	s := &Service{
		ranges: ranges,
		opts:   opts,
		bins:   distance.Bins(opts.DistanceBinsKm),
		logger: logger.Named("analysis"),
	}
	if opts.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, any](opts.CacheSize, nil, opts.CacheTTL)
	}
	return s
}

// Distances computes all pairwise distances among the selected aircraft.
// At most MaxDistanceRecords records are returned; TotalPairs and Bins
// cover every pair.
func (s *Service) Distances(snap snapshot.Snapshot, req Request) (*DistancesResult, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	ranges := s.ranges.ResolveRanges(req.Carriers, req.CarrierRanges)
	return memoise(s, snap, "distances", req, ranges, func(list []aircraft.Aircraft) *DistancesResult {
		records := distance.AllPairs(list)

		shown := records
		if s.opts.MaxDistanceRecords > 0 && len(shown) > s.opts.MaxDistanceRecords {
			shown = shown[:s.opts.MaxDistanceRecords]
		}

		return &DistancesResult{
			Distances:     shown,
			AircraftCount: len(list),
			TotalPairs:    len(records),
			Bins:          distance.CountLOS(records, s.bins),
			LastUpdate:    lastUpdate(snap),
		}
	}), nil
}

// Communication counts direct and relayed communication pairs
func (s *Service) Communication(snap snapshot.Snapshot, req Request) (*CommunicationResult, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	ranges := s.ranges.ResolveRanges(req.Carriers, req.CarrierRanges)
	return memoise(s, snap, "communication", req, ranges, func(list []aircraft.Aircraft) *CommunicationResult {
		records := distance.AllPairs(list)
		return &CommunicationResult{
			HopCounts:     connectivity.CountCommunicationPaths(list, records, ranges),
			AircraftCount: len(list),
			LastUpdate:    lastUpdate(snap),
		}
	}), nil
}

// Graph builds the node/edge view of the communication graph
func (s *Service) Graph(snap snapshot.Snapshot, req Request) (*GraphResult, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	ranges := s.ranges.ResolveRanges(req.Carriers, req.CarrierRanges)
	return memoise(s, snap, "graph", req, ranges, func(list []aircraft.Aircraft) *GraphResult {
		records := distance.AllPairs(list)
		return &GraphResult{
			GraphView:     connectivity.BuildGraphView(list, records, ranges),
			AircraftCount: len(list),
			LastUpdate:    lastUpdate(snap),
		}
	}), nil
}

// Aircraft lists the snapshot's aircraft that match filter
func (s *Service) Aircraft(snap snapshot.Snapshot, filter AircraftFilter) *AircraftResult {
	codes := s.ranges.Codes()
	if len(filter.Carriers) > 0 {
		codes = make(map[string]bool, len(filter.Carriers))
		for _, code := range filter.Carriers {
			codes[aircraft.NormalizeCarrier(code)] = true
		}
	}

	list := aircraft.FilterByCarrier(snap.Aircraft, codes)
	if filter.RadiusNM > 0 {
		nearby := list[:0]
		for _, a := range list {
			meters := geo.Haversine(filter.Latitude, filter.Longitude, a.Latitude, a.Longitude)
			if geo.MetersToNM(meters) <= filter.RadiusNM {
				nearby = append(nearby, a)
			}
		}
		list = nearby
	}

	return &AircraftResult{
		Aircraft:   list,
		LastUpdate: lastUpdate(snap),
		TotalCount: len(list),
	}
}

// memoise filters the snapshot for req and runs compute, serving repeated
// requests against the same snapshot and ranges from the cache
func memoise[T any](s *Service, snap snapshot.Snapshot, kind string, req Request, ranges connectivity.RangeTable, compute func([]aircraft.Aircraft) T) T {
	key := cacheKey(snap.ID, kind, req, ranges)
	if s.cache != nil && snap.ID != "" {
		if cached, ok := s.cache.Get(key); ok {
			s.logger.Debug("Serving cached analysis", logger.String("kind", kind))
			return cached.(T)
		}
	}

	started := time.Now()
	list := aircraft.FilterByCarrier(snap.Aircraft, req.selection())
	result := compute(list)

	s.logger.Debug("Analysis computed",
		logger.String("kind", kind),
		logger.Strings("carriers", req.Carriers),
		logger.Int("aircraft_count", len(list)),
		logger.Duration("duration", time.Since(started)),
	)

	if s.cache != nil && snap.ID != "" {
		s.cache.Add(key, result)
	}
	return result
}

func lastUpdate(snap snapshot.Snapshot) *time.Time {
	if snap.IsZero() {
		return nil
	}
	t := snap.FetchedAt
	return &t
}
