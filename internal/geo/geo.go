package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for surface distance and
// radio horizon calculations
const EarthRadiusKm = 6371.0

// Point is an aircraft position: latitude/longitude in degrees and
// altitude in meters
type Point struct {
	Lat  float64
	Lon  float64
	AltM float64
}

// AltitudeKm returns the altitude in kilometers. NaN and infinite
// altitudes read as 0.
func (p Point) AltitudeKm() float64 {
	if math.IsNaN(p.AltM) || math.IsInf(p.AltM, 0) {
		return 0
	}
	return p.AltM / 1000.0
}

// SurfaceDistanceKm returns the great circle distance between a and b
// using the Haversine formula
func SurfaceDistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lon1 := a.Lon * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	lon2 := b.Lon * math.Pi / 180.0

	sinDLat := math.Sin((lat2 - lat1) / 2)
	sinDLon := math.Sin((lon2 - lon1) / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	// Rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// Distance3D returns the distance in kilometers between a and b, combining
// the surface distance with the altitude difference
func Distance3D(a, b Point) float64 {
	surface := SurfaceDistanceKm(a, b)
	altDiff := math.Abs(a.AltitudeKm() - b.AltitudeKm())
	return math.Sqrt(surface*surface + altDiff*altDiff)
}

// HorizonKm returns the radio horizon distance of a single antenna at p.
// Altitudes below zero are clamped.
func HorizonKm(p Point) float64 {
	h := math.Max(0, p.AltitudeKm())
	return math.Sqrt(2 * EarthRadiusKm * h)
}

// RadioHorizon returns the combined radio horizon of a and b in kilometers
func RadioHorizon(a, b Point) float64 {
	return HorizonKm(a) + HorizonKm(b)
}

// IsWithinLOS reports whether a and b are within radio line of sight
func IsWithinLOS(a, b Point) bool {
	return Distance3D(a, b) <= RadioHorizon(a, b)
}
