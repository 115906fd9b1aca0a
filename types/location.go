package types

import "fmt"

// Coordinate is a resolved geographic position. Immutable once produced.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PlaceQuery is a user-supplied search for a place.
type PlaceQuery struct {
	City        string `json:"city"`
	CountryCode string `json:"country,omitempty"`
}

// GeocodeCandidate is one possible match for an ambiguous place search.
// Exactly one candidate must be chosen to produce a Coordinate.
type GeocodeCandidate struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Label renders a candidate the way it is shown in a disambiguation list.
func (c GeocodeCandidate) Label() string {
	if c.State != "" {
		return fmt.Sprintf("%s, %s, %s", c.Name, c.State, c.Country)
	}
	return fmt.Sprintf("%s, %s", c.Name, c.Country)
}

// LocationSource identifies which resolution path produced a location.
type LocationSource string

const (
	SourceSearch LocationSource = "search"
	SourceDevice LocationSource = "device"
	SourceIP     LocationSource = "ip"
)

// ResolvedLocation is the output of the location resolver: a coordinate
// plus an optional place name and the path that produced it.
type ResolvedLocation struct {
	Coordinate Coordinate     `json:"coordinate"`
	City       string         `json:"city,omitempty"`
	Source     LocationSource `json:"source"`
}

// GeoErrorReason classifies device geolocation failures.
type GeoErrorReason int

const (
	GeoPermissionDenied GeoErrorReason = iota + 1
	GeoPositionUnavailable
	GeoTimeout
	GeoUnknown
)

func (r GeoErrorReason) String() string {
	switch r {
	case GeoPermissionDenied:
		return "permission denied"
	case GeoPositionUnavailable:
		return "position unavailable"
	case GeoTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// GeoError is a classified device geolocation failure. Permission denial is
// terminal; every other reason is eligible for IP fallback.
type GeoError struct {
	Reason GeoErrorReason
	Err    error
}

func (e *GeoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("geolocation failed: %s", e.Reason)
}

func (e *GeoError) Unwrap() error {
	return e.Err
}
