package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types queued by the registration flow.
const (
	EmailTypeConfirmation = "confirmation"
	EmailTypeCancellation = "cancellation"
)

// EmailLog delivery statuses.
const (
	EmailLogStatusQueued = "queued"
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records one confirmation or cancellation email per registration.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	RegistrationID *uuid.UUID `json:"registration_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
