package opensky

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/yegors/co-los/internal/aircraft"
)

// State vector positions, see
// https://openskynetwork.github.io/opensky-api/rest.html#all-state-vectors
const (
	idxICAO24        = 0
	idxCallsign      = 1
	idxOriginCountry = 2
	idxLongitude     = 5
	idxLatitude      = 6
	idxBaroAltitude  = 7
	idxOnGround      = 8
	idxVelocity      = 9
	idxHeading       = 10
	idxGeoAltitude   = 13

	minStateFields = 11
)

// ParseStates parses a /states/all body. Vectors without a position are
// dropped; a null "states" field yields no aircraft.
func ParseStates(body []byte) (*StatesResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse JSON: invalid document")
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("failed to parse JSON: expected object, got %s", root.Type)
	}

	states := root.Get("states")
	response := &StatesResponse{
		Time:     time.Unix(root.Get("time").Int(), 0).UTC(),
		Aircraft: []aircraft.Aircraft{},
	}
	if !states.IsArray() {
		return response, nil
	}

	states.ForEach(func(_, vector gjson.Result) bool {
		response.Total++
		if a, ok := ParseStateVector(vector); ok {
			response.Aircraft = append(response.Aircraft, a)
		}
		return true
	})

	return response, nil
}

// ParseStateVector converts one state vector into an Aircraft. It reports
// false for short vectors and vectors with no latitude or longitude.
func ParseStateVector(vector gjson.Result) (aircraft.Aircraft, bool) {
	if !vector.IsArray() {
		return aircraft.Aircraft{}, false
	}

	fields := vector.Array()
	if len(fields) < minStateFields {
		return aircraft.Aircraft{}, false
	}

	lon, lat := fields[idxLongitude], fields[idxLatitude]
	if lon.Type != gjson.Number || lat.Type != gjson.Number {
		return aircraft.Aircraft{}, false
	}

	icao := fields[idxICAO24].String()
	if icao == "" {
		return aircraft.Aircraft{}, false
	}

	callsign := aircraft.CleanCallsign(fields[idxCallsign].String())
	baroAlt := fields[idxBaroAltitude].Float()

	// Geometric altitude falls back to barometric when missing or zero
	geoAlt := baroAlt
	if len(fields) > idxGeoAltitude {
		if v := fields[idxGeoAltitude].Float(); v != 0 {
			geoAlt = v
		}
	}

	return aircraft.Aircraft{
		ICAO24:        icao,
		Callsign:      callsign,
		Carrier:       aircraft.CarrierFromCallsign(callsign),
		OriginCountry: fields[idxOriginCountry].String(),
		Latitude:      lat.Float(),
		Longitude:     lon.Float(),
		BaroAltitude:  baroAlt,
		GeoAltitude:   geoAlt,
		Velocity:      fields[idxVelocity].Float(),
		Heading:       fields[idxHeading].Float(),
		OnGround:      fields[idxOnGround].Bool(),
	}, true
}
