package carriers

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/connectivity"
	"github.com/yegors/co-los/internal/storage/sqlite"
	"github.com/yegors/co-los/pkg/logger"
)

var (
	// ErrUnknownCarrier is returned for carrier codes the registry does not track
	ErrUnknownCarrier = errors.New("unknown carrier")
	// ErrInvalidRange is returned for non-positive or non-finite ranges
	ErrInvalidRange = errors.New("range must be a positive number of kilometers")
)

// Carrier is a tracked airline and its default communication range
type Carrier struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	DefaultRangeKm float64 `json:"default_range_km"`
}

// Store persists carrier ranges
type Store interface {
	Seed(records []sqlite.CarrierRecord) (int, error)
	List() ([]*sqlite.CarrierRecord, error)
	UpdateRange(code string, rangeKm float64) error
}

// Registry is the set of tracked carriers. Reads are served from memory;
// range changes are written through to the store when one is configured.
type Registry struct {
	mu             sync.RWMutex
	carriers       map[string]Carrier
	defaultRangeKm float64
	store          Store
	logger         *logger.Logger
}

// NewRegistry creates a registry. When store is non-nil the defaults are
// seeded into it and the stored values take precedence.
func NewRegistry(defaults []Carrier, defaultRangeKm float64, store Store, log *logger.Logger) (*Registry, error) {
	r := &Registry{
		carriers:       make(map[string]Carrier, len(defaults)),
		defaultRangeKm: defaultRangeKm,
		store:          store,
		logger:         log.Named("carrier-registry"),
	}

	for _, c := range defaults {
		c.Code = aircraft.NormalizeCarrier(c.Code)
		r.carriers[c.Code] = c
	}

	if store == nil {
		r.logger.Info("Carrier registry loaded from configuration",
			logger.Int("carrier_count", len(r.carriers)),
		)
		return r, nil
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	records := make([]sqlite.CarrierRecord, 0, len(r.carriers))
	for _, c := range r.carriers {
		records = append(records, sqlite.CarrierRecord{
			Code:           c.Code,
			Name:           c.Name,
			DefaultRangeKm: c.DefaultRangeKm,
		})
	}

	inserted, err := r.store.Seed(records)
	if err != nil {
		return fmt.Errorf("failed to seed carriers: %w", err)
	}

	stored, err := r.store.List()
	if err != nil {
		return fmt.Errorf("failed to load carriers: %w", err)
	}

	for _, rec := range stored {
		r.carriers[rec.Code] = Carrier{
			Code:           rec.Code,
			Name:           rec.Name,
			DefaultRangeKm: rec.DefaultRangeKm,
		}
	}

	r.logger.Info("Carrier registry loaded from storage",
		logger.Int("carrier_count", len(r.carriers)),
		logger.Int("seeded", inserted),
	)
	return nil
}

// DefaultRangeKm returns the range used for carriers without one
func (r *Registry) DefaultRangeKm() float64 {
	return r.defaultRangeKm
}

// List returns all carriers ordered by code
func (r *Registry) List() []Carrier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Carrier, 0, len(r.carriers))
	for _, c := range r.carriers {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

// Codes returns the set of tracked carrier codes
func (r *Registry) Codes() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make(map[string]bool, len(r.carriers))
	for code := range r.carriers {
		codes[code] = true
	}
	return codes
}

// Get returns a carrier by code
func (r *Registry) Get(code string) (Carrier, error) {
	code = aircraft.NormalizeCarrier(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carriers[code]
	if !ok {
		return Carrier{}, fmt.Errorf("%w: %s", ErrUnknownCarrier, code)
	}
	return c, nil
}

// SetRange changes a carrier's default range
func (r *Registry) SetRange(code string, rangeKm float64) (Carrier, error) {
	code = aircraft.NormalizeCarrier(code)
	if !ValidRange(rangeKm) {
		return Carrier{}, ErrInvalidRange
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carriers[code]
	if !ok {
		return Carrier{}, fmt.Errorf("%w: %s", ErrUnknownCarrier, code)
	}

	if r.store != nil {
		if err := r.store.UpdateRange(code, rangeKm); err != nil {
			return Carrier{}, fmt.Errorf("failed to persist range for %s: %w", code, err)
		}
	}

	previous := c.DefaultRangeKm
	c.DefaultRangeKm = rangeKm
	r.carriers[code] = c

	r.logger.Info("Carrier range updated",
		logger.String("carrier", code),
		logger.Float64("previous_km", previous),
		logger.Float64("range_km", rangeKm),
	)
	return c, nil
}

// ResolveRanges builds the range table for one analysis. Each selected
// carrier gets its override when present, otherwise its registered range,
// otherwise the global default.
func (r *Registry) ResolveRanges(selected []string, overrides map[string]float64) connectivity.RangeTable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := make(map[string]float64, len(overrides))
	for code, km := range overrides {
		normalized[aircraft.NormalizeCarrier(code)] = km
	}

	table := connectivity.RangeTable{
		DefaultKm: r.defaultRangeKm,
		ByCarrier: make(map[string]float64, len(selected)),
	}
	for _, code := range selected {
		code = aircraft.NormalizeCarrier(code)
		if km, ok := normalized[code]; ok {
			table.ByCarrier[code] = km
		} else if c, ok := r.carriers[code]; ok {
			table.ByCarrier[code] = c.DefaultRangeKm
		}
	}
	return table
}

// ValidRange reports whether km is usable as a communication range
func ValidRange(km float64) bool {
	return km > 0 && !math.IsInf(km, 0) && !math.IsNaN(km)
}
