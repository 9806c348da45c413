package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/connectivity"
)

var (
	// ErrNoCarriers is returned when a request selects no carriers
	ErrNoCarriers = errors.New("no carriers selected")
	// ErrInvalidRange is returned for non-positive or non-finite range overrides
	ErrInvalidRange = errors.New("invalid carrier range")
)

// Request selects the carriers to analyse and optional per-carrier ranges
type Request struct {
	Carriers      []string           `json:"carriers"`
	CarrierRanges map[string]float64 `json:"carrier_ranges,omitempty"`
}

// Normalize upper-cases and deduplicates carrier codes, keeping first-seen
// order, and validates range overrides
func (r Request) Normalize() (Request, error) {
	out := Request{
		Carriers:      make([]string, 0, len(r.Carriers)),
		CarrierRanges: make(map[string]float64, len(r.CarrierRanges)),
	}

	seen := make(map[string]bool, len(r.Carriers))
	for _, code := range r.Carriers {
		code = aircraft.NormalizeCarrier(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out.Carriers = append(out.Carriers, code)
	}
	if len(out.Carriers) == 0 {
		return Request{}, ErrNoCarriers
	}

	for code, km := range r.CarrierRanges {
		if km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
			return Request{}, fmt.Errorf("%w: %s = %v", ErrInvalidRange, code, km)
		}
		out.CarrierRanges[aircraft.NormalizeCarrier(code)] = km
	}

	return out, nil
}

// selection returns the carrier set used to filter aircraft
func (r Request) selection() map[string]bool {
	codes := make(map[string]bool, len(r.Carriers))
	for _, code := range r.Carriers {
		codes[code] = true
	}
	return codes
}

// cacheKey identifies one computation. The resolved range table is part
// of the key so registry changes are never served from a stale entry.
func cacheKey(snapshotID, kind string, req Request, ranges connectivity.RangeTable) string {
	carriers := append([]string(nil), req.Carriers...)
	sort.Strings(carriers)

	var b strings.Builder
	b.WriteString(snapshotID)
	b.WriteByte('|')
	b.WriteString(kind)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(ranges.DefaultKm, 'g', -1, 64))
	for _, code := range carriers {
		b.WriteByte('|')
		b.WriteString(code)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(ranges.RangeFor(code), 'g', -1, 64))
	}
	return b.String()
}
