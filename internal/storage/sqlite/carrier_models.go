package sqlite

import "time"

// CarrierRecord represents a tracked carrier and its default communication range
type CarrierRecord struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	DefaultRangeKm float64   `json:"default_range_km"`
	UpdatedAt      time.Time `json:"updated_at"`
}
