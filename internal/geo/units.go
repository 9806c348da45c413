package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// METERS_PER_NM is the number of meters in a nautical mile
const METERS_PER_NM = 1852.0

// Haversine calculates the distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return SurfaceDistanceKm(Point{Lat: lat1, Lon: lon1}, Point{Lat: lat2, Lon: lon2}) * 1000.0
}

// MetersToNM converts meters to nautical miles
func MetersToNM(meters float64) float64 {
	return meters / METERS_PER_NM
}

// ParseCoordinates parses a string in the format "lat,lon" to float64 values
func ParseCoordinates(coordStr string) (float64, float64, error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid coordinate format, expected 'lat,lon'")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude out of range: %f", lat)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude out of range: %f", lon)
	}

	return lat, lon, nil
}
