package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a registration.
type Status string

// Registration statuses.
const (
	StatusRegistered Status = "registered"
	StatusAttended   Status = "attended"
	StatusCancelled  Status = "cancelled"
)

// transitions maps each status to the statuses it may move to.
// cancelled is terminal.
var transitions = map[Status][]Status{
	StatusRegistered: {StatusAttended, StatusCancelled},
	StatusAttended:   {StatusCancelled},
	StatusCancelled:  {},
}

// TransitionError reports a rejected status transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid registration transition: %s -> %s", e.From, e.To)
}

// CanTransition reports whether a registration may move from current to target.
func CanTransition(current, target Status) bool {
	for _, s := range transitions[current] {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which target may be reached.
// The store uses this to build the predicate of a conditional status update.
func TransitionSources(target Status) []Status {
	var out []Status
	for from, tos := range transitions {
		for _, to := range tos {
			if to == target {
				out = append(out, from)
			}
		}
	}
	return out
}

// Registration is one attendee's registration for an event.
type Registration struct {
	ID             uuid.UUID `json:"id"`
	EventID        uuid.UUID `json:"event_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CorpEmail      string    `json:"corp_email"`
	CorpSID        string    `json:"corp_sid"`
	PersonalEmail  string    `json:"personal_email,omitempty"`
	GithubUsername string    `json:"github_username,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transition moves the registration to target if the transition table allows
// it, otherwise returns a *TransitionError and leaves the status unchanged.
// This is an in-memory check only; concurrent writers are handled by the
// conditional update in the store (see registrations.Service.CheckIn).
func (r *Registration) Transition(target Status) error {
	if !CanTransition(r.Status, target) {
		return &TransitionError{From: r.Status, To: target}
	}
	r.Status = target
	return nil
}

// InitialStatus decides the status of a brand-new registration. A registration
// created while the event is live (strictly inside the start/end window) is a
// walk-up and counts as attended immediately; otherwise it only reserves a
// seat. Equality with either bound yields registered.
func InitialStatus(e *Event, now time.Time) Status {
	if e.StartDate.Before(now) && now.Before(e.EndDate) {
		return StatusAttended
	}
	return StatusRegistered
}
