package distance

import (
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/internal/geo"
)

// Endpoint is the display metadata of one side of a distance record
type Endpoint struct {
	ICAO24   string `json:"icao24"`
	Callsign string `json:"callsign"`
	Carrier  string `json:"carrier"`
}

// Record holds the distance and line-of-sight result for one unordered
// aircraft pair
type Record struct {
	Aircraft1      Endpoint `json:"aircraft1"`
	Aircraft2      Endpoint `json:"aircraft2"`
	DistanceKm     float64  `json:"distance_km"`
	LOSDistanceKm  *float64 `json:"los_distance_km"` // nil unless within LOS
	RadioHorizonKm float64  `json:"radio_horizon_km"`
	WithinLOS      bool     `json:"within_los"`
}

func endpointOf(a aircraft.Aircraft) Endpoint {
	return Endpoint{
		ICAO24:   a.ICAO24,
		Callsign: a.Callsign,
		Carrier:  a.Carrier,
	}
}

// Between computes the record for a single pair
func Between(a, b aircraft.Aircraft) Record {
	pa, pb := a.Position(), b.Position()

	dist := geo.Distance3D(pa, pb)
	horizon := geo.RadioHorizon(pa, pb)
	within := dist <= horizon

	record := Record{
		Aircraft1:      endpointOf(a),
		Aircraft2:      endpointOf(b),
		DistanceKm:     dist,
		RadioHorizonKm: horizon,
		WithinLOS:      within,
	}
	if within {
		los := dist
		record.LOSDistanceKm = &los
	}
	return record
}

// AllPairs computes one record per unordered pair of list. Records are
// ordered by outer index i then inner index j > i.
func AllPairs(list []aircraft.Aircraft) []Record {
	n := len(list)
	if n < 2 {
		return []Record{}
	}

	records := make([]Record, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			records = append(records, Between(list[i], list[j]))
		}
	}
	return records
}
