package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelup-events/backend/internal/models"
	"github.com/levelup-events/backend/pkg/queue"
)

// Sentinel errors returned by the store and service.
var (
	// ErrNotFound means no registration exists with the given ID.
	ErrNotFound = errors.New("registration not found")
	// ErrConditionFailed means a conditional status update did not apply
	// because the stored status no longer permits the transition. It is an
	// expected outcome (double-scanned QR code, check-in racing a
	// cancellation), not an infrastructure failure.
	ErrConditionFailed = errors.New("status condition not met")
	// ErrDuplicate means a non-cancelled registration already exists for the
	// same event and corporate email.
	ErrDuplicate = errors.New("email already registered for this event")
	// ErrEventNotOpen means the event is not accepting registrations.
	ErrEventNotOpen = errors.New("event is not open for registration")
)

// Store is the persistence contract the service needs: point lookup, filtered
// scan, and an atomic conditional single-item status update.
type Store interface {
	Create(ctx context.Context, r *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// FindActive returns the non-cancelled registration for event+corp email,
	// or nil when there is none.
	FindActive(ctx context.Context, eventID uuid.UUID, corpEmail string) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error)
	UpdateAttendee(ctx context.Context, r *models.Registration) error
	// TransitionStatus sets status to target only if the stored status still
	// permits that transition. Returns ErrConditionFailed when the condition
	// did not hold at write time, ErrNotFound when the row is missing.
	TransitionStatus(ctx context.Context, id uuid.UUID, target models.Status) error
}

// EventGetter looks up the owning event (implemented by events.Repository).
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Enqueuer queues confirmation/cancellation email jobs (implemented by
// queue.Queue). May be nil, in which case no email is queued.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, p queue.EmailPayload) error
}

// Outcome is the result of a check-in or cancellation attempt. Applied is
// false when the conditional update was rejected; Message is user-facing
// either way and, on rejection, names the current stored status.
type Outcome struct {
	Registration *models.Registration `json:"registration"`
	Applied      bool                 `json:"applied"`
	Message      string               `json:"message"`
}

// RegisterInput carries validated attendee fields into Register.
type RegisterInput struct {
	FirstName      string
	LastName       string
	CorpEmail      string
	CorpSID        string
	PersonalEmail  string
	GithubUsername string
}

// Service implements the registration lifecycle on top of a Store.
type Service struct {
	store  Store
	events EventGetter
	emails Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a registration service. emails may be nil.
func NewService(store Store, events EventGetter, emails Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, emails: emails, logger: logger, now: time.Now}
}

// Register creates a registration for an open event. The initial status
// follows the registration window policy: a registration created strictly
// inside the event's start/end window is marked attended (walk-up), otherwise
// registered. A second non-cancelled registration for the same corp email and
// event is rejected with ErrDuplicate.
func (s *Service) Register(ctx context.Context, eventID uuid.UUID, in RegisterInput) (*models.Registration, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.EventStatusOpen {
		return nil, ErrEventNotOpen
	}

	existing, err := s.store.FindActive(ctx, eventID, in.CorpEmail)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicate
	}

	r := &models.Registration{
		EventID:        eventID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		CorpEmail:      in.CorpEmail,
		CorpSID:        in.CorpSID,
		PersonalEmail:  in.PersonalEmail,
		GithubUsername: in.GithubUsername,
		Status:         models.InitialStatus(e, s.now().UTC()),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.queueEmail(ctx, e, r, models.EmailTypeConfirmation)
	return r, nil
}

// Update edits attendee fields of an existing registration. The duplicate
// guard is deliberately not applied here: the edit form owns the record it is
// editing, and re-running the scan would lock users out of fixing typos.
// Event and status are not editable; cancel and re-register instead.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in RegisterInput) (*models.Registration, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.FirstName = in.FirstName
	r.LastName = in.LastName
	r.CorpEmail = in.CorpEmail
	r.CorpSID = in.CorpSID
	r.PersonalEmail = in.PersonalEmail
	r.GithubUsername = in.GithubUsername
	if err := s.store.UpdateAttendee(ctx, r); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return r, nil
}

// Get returns a registration by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return s.store.GetByID(ctx, id)
}

// Search finds the active (non-cancelled) registration for event+corp email.
func (s *Service) Search(ctx context.Context, eventID uuid.UUID, corpEmail string) (*models.Registration, error) {
	r, err := s.store.FindActive(ctx, eventID, corpEmail)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// Roster lists all registrations for an event.
func (s *Service) Roster(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	return s.store.ListByEvent(ctx, eventID)
}

// CheckIn marks a registration attended via a conditional update: the write
// applies only if the stored status is neither attended nor cancelled at
// write time, which closes the read-then-write race between two concurrent
// scans (or a scan racing a cancellation). A failed condition is an expected
// outcome: the current status is re-read (the attempted write did not occur)
// and reported back. No retries. Any other store failure propagates.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	err := s.store.TransitionStatus(ctx, id, models.StatusAttended)
	if err != nil && !errors.Is(err, ErrConditionFailed) {
		return nil, err
	}
	r, getErr := s.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if errors.Is(err, ErrConditionFailed) {
		s.logger.Info("check-in rejected",
			zap.String("registration_id", id.String()),
			zap.String("current_status", string(r.Status)))
		return &Outcome{
			Registration: r,
			Applied:      false,
			Message:      fmt.Sprintf("Check-in not recorded: this registration is already %s.", r.Status),
		}, nil
	}
	return &Outcome{
		Registration: r,
		Applied:      true,
		Message:      fmt.Sprintf("Welcome, %s! You are checked in.", r.FirstName),
	}, nil
}

// Cancel moves a registration to cancelled through the same conditional
// mechanism as CheckIn. Cancellation is allowed from both registered and
// attended, so the only state the condition excludes is cancelled itself:
// cancelling twice reports a rejection instead of silently overwriting.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	err := s.store.TransitionStatus(ctx, id, models.StatusCancelled)
	if err != nil && !errors.Is(err, ErrConditionFailed) {
		return nil, err
	}
	r, getErr := s.store.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if errors.Is(err, ErrConditionFailed) {
		return &Outcome{
			Registration: r,
			Applied:      false,
			Message:      fmt.Sprintf("Cancellation not recorded: this registration is already %s.", r.Status),
		}, nil
	}

	if e, eerr := s.events.GetByID(ctx, r.EventID); eerr == nil {
		s.queueEmail(ctx, e, r, models.EmailTypeCancellation)
	}
	return &Outcome{
		Registration: r,
		Applied:      true,
		Message:      "Your registration has been cancelled.",
	}, nil
}

func (s *Service) queueEmail(ctx context.Context, e *models.Event, r *models.Registration, emailType string) {
	if s.emails == nil {
		return
	}
	subject := fmt.Sprintf("Registration confirmed: %s", e.Name)
	if emailType == models.EmailTypeCancellation {
		subject = fmt.Sprintf("Registration cancelled: %s", e.Name)
	}
	err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		EventID:        e.ID,
		RegistrationID: r.ID,
		RecipientEmail: r.CorpEmail,
		Subject:        subject,
	})
	if err != nil {
		// Email is best-effort; the registration itself already committed.
		s.logger.Warn("enqueue email failed",
			zap.Error(err),
			zap.String("registration_id", r.ID.String()),
			zap.String("email_type", emailType))
	}
}
