package snapshot

import (
	"github.com/yegors/co-los/internal/aircraft"
	"github.com/yegors/co-los/pkg/logger"
)

// ChangeSummary counts differences between two consecutive snapshots
type ChangeSummary struct {
	Added   int
	Updated int
	Removed int
}

// ChangeDetector tracks aircraft changes between refreshes
type ChangeDetector struct {
	previous map[string]aircraft.Aircraft
	logger   *logger.Logger
}

// NewChangeDetector creates a new change detector
func NewChangeDetector(logger *logger.Logger) *ChangeDetector {
	return &ChangeDetector{
		previous: make(map[string]aircraft.Aircraft),
		logger:   logger.Named("change-detector"),
	}
}

// DetectChanges compares current with the previous call's aircraft
func (cd *ChangeDetector) DetectChanges(current []aircraft.Aircraft) ChangeSummary {
	var summary ChangeSummary
	currentMap := aircraft.Index(current)

	for icao, now := range currentMap {
		if before, exists := cd.previous[icao]; exists {
			if hasChanged(before, now) {
				summary.Updated++
			}
		} else {
			summary.Added++
		}
	}

	for icao := range cd.previous {
		if _, exists := currentMap[icao]; !exists {
			summary.Removed++
		}
	}

	cd.previous = currentMap

	cd.logger.Debug("Snapshot changes",
		logger.Int("added", summary.Added),
		logger.Int("updated", summary.Updated),
		logger.Int("removed", summary.Removed),
	)
	return summary
}

// hasChanged reports whether any field the analysis depends on changed
func hasChanged(before, now aircraft.Aircraft) bool {
	return before.Latitude != now.Latitude ||
		before.Longitude != now.Longitude ||
		before.GeoAltitude != now.GeoAltitude ||
		before.Callsign != now.Callsign ||
		before.Carrier != now.Carrier
}
