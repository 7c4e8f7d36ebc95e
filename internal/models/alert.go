package models

import "time"

// Coordinates carries a geocoded point. Both fields are nil when geocoding
// failed for the location text; that is a degraded state, not an error, and
// it serializes as JSON nulls.
type Coordinates struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (c Coordinates) Resolved() bool {
	return c.Lat != nil && c.Lng != nil
}

// NewCoordinates returns a resolved Coordinates value.
func NewCoordinates(lat, lng float64) Coordinates {
	return Coordinates{Lat: &lat, Lng: &lng}
}

// Alert is the record broadcast to live subscribers when a new help request
// is accepted. It is constructed once, after the persistence write, and
// never mutated afterwards.
type Alert struct {
	ID           int64       `json:"id"`
	DisasterType string      `json:"disasterType"`
	Location     string      `json:"location"`
	RequestType  string      `json:"requestType"`
	Coordinates  Coordinates `json:"coordinates"`
	Timestamp    time.Time   `json:"timestamp"`
}
