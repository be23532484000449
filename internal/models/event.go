package models

import (
	"time"

	"github.com/google/uuid"
)

// Event lifecycle statuses.
const (
	EventStatusOpen   = "open"
	EventStatusClosed = "closed"
	EventStatusDone   = "done"
)

// EventStatuses is the set of valid event statuses.
var EventStatuses = map[string]struct{}{
	EventStatusOpen:   {},
	EventStatusClosed: {},
	EventStatusDone:   {},
}

// Event is one offering attendees can register for.
type Event struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	ICSFileLocation string    `json:"ics_file_location,omitempty"` // S3 object key of the iCal invite
	NumSeats        int       `json:"num_seats"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	LocalTimeZone   string    `json:"local_time_zone"` // IANA name used for local-time display
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
