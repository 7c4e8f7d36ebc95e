package models

import "time"

type HelpRequest struct {
	ID           int64
	UserRole     string // "Victim", "Volunteer", ...
	RequestType  string // assistance needed, e.g. "Boat", "Medical"
	DisasterType string // "Earthquake", "Flood", "Cyclone", "Fire", ...
	Location     string // free-text location as reported
	Description  string
	Coordinates  Coordinates // nil lat/lng when geocoding failed
	CreatedAt    time.Time
}

// Alert builds the immutable broadcast record for an accepted help request.
func (r *HelpRequest) Alert() Alert {
	return Alert{
		ID:           r.ID,
		DisasterType: r.DisasterType,
		Location:     r.Location,
		RequestType:  r.RequestType,
		Coordinates:  r.Coordinates,
		Timestamp:    r.CreatedAt.UTC(),
	}
}
