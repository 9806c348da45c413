package aircraft

import (
	"strings"

	"github.com/yegors/co-los/internal/geo"
)

// CarrierCodeLength is the length of an ICAO airline designator
const CarrierCodeLength = 3

// Aircraft is a single position report from the state feed
type Aircraft struct {
	ICAO24        string  `json:"icao24"`
	Callsign      string  `json:"callsign,omitempty"`
	Carrier       string  `json:"carrier_code,omitempty"`
	OriginCountry string  `json:"origin_country,omitempty"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	BaroAltitude  float64 `json:"baro_altitude"` // meters
	GeoAltitude   float64 `json:"geo_altitude"`  // meters
	Velocity      float64 `json:"velocity"`      // m/s
	Heading       float64 `json:"heading"`       // degrees
	OnGround      bool    `json:"on_ground"`
}

// Position returns the point used for distance and horizon calculations
func (a Aircraft) Position() geo.Point {
	return geo.Point{Lat: a.Latitude, Lon: a.Longitude, AltM: a.GeoAltitude}
}

// Label returns the callsign, or the ICAO address when there is none
func (a Aircraft) Label() string {
	if a.Callsign != "" {
		return a.Callsign
	}
	return a.ICAO24
}

// CarrierFromCallsign derives the operator code from the leading
// characters of a callsign. Short callsigns have no carrier.
func CarrierFromCallsign(callsign string) string {
	callsign = CleanCallsign(callsign)
	if len(callsign) < CarrierCodeLength {
		return ""
	}
	return strings.ToUpper(callsign[:CarrierCodeLength])
}

// CleanCallsign removes padding and null characters from callsigns
func CleanCallsign(callsign string) string {
	return strings.TrimSpace(strings.ReplaceAll(callsign, "\x00", ""))
}

// NormalizeCarrier upper-cases and trims a carrier code
func NormalizeCarrier(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FilterByCarrier returns the aircraft whose carrier is in codes, in input
// order. The input slice is not modified.
func FilterByCarrier(list []Aircraft, codes map[string]bool) []Aircraft {
	filtered := make([]Aircraft, 0, len(list))
	for _, a := range list {
		if a.Carrier != "" && codes[a.Carrier] {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// Index maps ICAO addresses to aircraft. Later duplicates win.
func Index(list []Aircraft) map[string]Aircraft {
	index := make(map[string]Aircraft, len(list))
	for _, a := range list {
		index[a.ICAO24] = a
	}
	return index
}
