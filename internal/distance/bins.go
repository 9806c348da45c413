package distance

import (
	"math"
	"strconv"
)

// Bin is a half-open distance range [Min, Max) in kilometers. The last bin
// of a set is open ended with Max = +Inf.
type Bin struct {
	Min float64
	Max float64
}

// Key returns the label used in responses, e.g. "50-100" or "200-inf"
func (b Bin) Key() string {
	upper := "inf"
	if !math.IsInf(b.Max, 1) {
		upper = strconv.FormatFloat(b.Max, 'f', -1, 64)
	}
	return strconv.FormatFloat(b.Min, 'f', -1, 64) + "-" + upper
}

// Contains reports whether km falls in the bin
func (b Bin) Contains(km float64) bool {
	return km >= b.Min && km < b.Max
}

// Bins builds consecutive bins from ascending edges, closing with an
// open-ended bin. Edges [0 50 100] give 0-50, 50-100, 100-inf.
func Bins(edges []float64) []Bin {
	if len(edges) == 0 {
		return nil
	}

	bins := make([]Bin, 0, len(edges))
	for i := 0; i < len(edges)-1; i++ {
		bins = append(bins, Bin{Min: edges[i], Max: edges[i+1]})
	}
	return append(bins, Bin{Min: edges[len(edges)-1], Max: math.Inf(1)})
}

// CountLOS counts records within LOS by their LOS distance. Every bin key
// is present in the result.
func CountLOS(records []Record, bins []Bin) map[string]int {
	counts := make(map[string]int, len(bins))
	for _, b := range bins {
		counts[b.Key()] = 0
	}

	for _, r := range records {
		if r.LOSDistanceKm == nil {
			continue
		}
		for _, b := range bins {
			if b.Contains(*r.LOSDistanceKm) {
				counts[b.Key()]++
				break
			}
		}
	}
	return counts
}
