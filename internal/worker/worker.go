package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levelup-events/backend/internal/emails"
	"github.com/levelup-events/backend/internal/events"
	"github.com/levelup-events/backend/internal/models"
	"github.com/levelup-events/backend/internal/registrations"
	"github.com/levelup-events/backend/pkg/queue"
	"github.com/levelup-events/backend/pkg/storage"
)

// Sender delivers a composed email. The default LogSender only records the
// message; plug in a real transport behind this interface when one exists.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs the composed email instead of delivering it.
type LogSender struct {
	Logger *zap.Logger
}

// Send logs the message and reports success.
func (s LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.Info("email delivered (log transport)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// EmailProcessor consumes email jobs: compose the confirmation or
// cancellation message for a registration, deliver it, and record the result
// in the email log.
type EmailProcessor struct {
	emailRepo *emails.Repository
	regRepo   *registrations.Repository
	eventRepo *events.Repository
	s3        *storage.S3 // nil when S3 is disabled
	queue     *queue.Queue
	sender    Sender
	siteURL   string
	logger    *zap.Logger
}

// NewEmailProcessor creates an email job processor. s3 may be nil; a nil
// sender falls back to LogSender.
func NewEmailProcessor(emailRepo *emails.Repository, regRepo *registrations.Repository, eventRepo *events.Repository, s3 *storage.S3, q *queue.Queue, sender Sender, siteURL string, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &EmailProcessor{
		emailRepo: emailRepo,
		regRepo:   regRepo,
		eventRepo: eventRepo,
		s3:        s3,
		queue:     q,
		sender:    sender,
		siteURL:   siteURL,
		logger:    logger,
	}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.regRepo.GetByID(ctx, payload.RegistrationID)
	if err != nil {
		return fmt.Errorf("load registration %s: %w", payload.RegistrationID, err)
	}
	event, err := p.eventRepo.GetByID(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", payload.EventID, err)
	}

	body := p.compose(ctx, payload.EmailType, event, reg)

	eventID := event.ID
	regID := reg.ID
	logRow := &models.EmailLog{
		EventID:        &eventID,
		RegistrationID: &regID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         models.EmailLogStatusQueued,
	}
	if err := p.emailRepo.Create(ctx, logRow); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, body); err != nil {
		_ = p.emailRepo.MarkFailed(ctx, logRow.ID, err.Error())
		return fmt.Errorf("send email: %w", err)
	}
	if err := p.emailRepo.MarkSent(ctx, logRow.ID, time.Now()); err != nil {
		p.logger.Error("mark email sent failed", zap.Error(err), zap.String("email_log_id", logRow.ID.String()))
	}
	return nil
}

// compose builds the plain-text message body. Times are rendered in the
// event's local timezone when it loads; UTC otherwise.
func (p *EmailProcessor) compose(ctx context.Context, emailType string, e *models.Event, r *models.Registration) string {
	loc, err := time.LoadLocation(e.LocalTimeZone)
	if err != nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", r.FirstName)
	if emailType == models.EmailTypeCancellation {
		fmt.Fprintf(&b, "Your registration for %s has been cancelled.\n", e.Name)
		fmt.Fprintf(&b, "You can register again at %s/events while the event is open.\n", p.siteURL)
		return b.String()
	}
	fmt.Fprintf(&b, "You are registered for %s.\n", e.Name)
	fmt.Fprintf(&b, "When: %s - %s\n",
		e.StartDate.In(loc).Format("Mon Jan 2 2006 3:04 PM MST"),
		e.EndDate.In(loc).Format("3:04 PM MST"))
	fmt.Fprintf(&b, "Where: %s\n\n", e.Location)
	fmt.Fprintf(&b, "Check in at the door with this link (or scan your QR code):\n%s/registrations/%s/checkin\n", p.siteURL, r.ID)
	fmt.Fprintf(&b, "QR code: %s/registrations/%s/qr\n", p.siteURL, r.ID)
	fmt.Fprintf(&b, "Edit or cancel: %s/registrations/%s\n", p.siteURL, r.ID)
	if p.s3 != nil && e.ICSFileLocation != "" {
		if url, err := p.s3.PresignInviteDownload(ctx, e.ICSFileLocation); err == nil {
			fmt.Fprintf(&b, "Calendar invite: %s\n", url)
		}
	}
	return b.String()
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
