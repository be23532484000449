package registrations

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelup-events/backend/internal/events"
	"github.com/levelup-events/backend/pkg/qr"
	"github.com/levelup-events/backend/pkg/response"
	"github.com/levelup-events/backend/pkg/storage"
)

var corpSIDPattern = regexp.MustCompile(`^[a-zA-Z][0-9]{6}$`)

// RegisterRequest is the body for POST /events/:id/registrations and
// PATCH /registrations/:id.
type RegisterRequest struct {
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name" binding:"required"`
	CorpEmail      string `json:"corp_email" binding:"required,email"`
	CorpSID        string `json:"corp_sid" binding:"required,max=7"`
	PersonalEmail  string `json:"personal_email" binding:"omitempty,email"`
	GithubUsername string `json:"github_username"`
}

// SearchRequest is the body for POST /registrations/search.
type SearchRequest struct {
	EventID   string `json:"event_id" binding:"required,uuid"`
	CorpEmail string `json:"corp_email" binding:"required,email"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc        *Service
	s3         *storage.S3 // nil when S3 is disabled
	siteURL    string
	corpDomain string // e.g. "@example.com"; empty disables the suffix check
	logger     *zap.Logger
}

// NewHandler creates a registrations handler. s3 may be nil.
func NewHandler(svc *Service, s3 *storage.S3, siteURL, corpDomain string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, s3: s3, siteURL: siteURL, corpDomain: corpDomain, logger: logger}
}

// validate applies the field checks gin binding tags cannot express. The
// returned string is a field-level message, empty when the request is valid.
func (h *Handler) validate(req *RegisterRequest) string {
	if h.corpDomain != "" && !strings.HasSuffix(strings.ToLower(req.CorpEmail), strings.ToLower(h.corpDomain)) {
		return fmt.Sprintf("corp_email: must be a valid %s address", h.corpDomain)
	}
	if !corpSIDPattern.MatchString(req.CorpSID) {
		return "corp_sid: must be an enterprise login ID in the form 'X000000'"
	}
	if strings.Contains(req.GithubUsername, "@") {
		return "github_username: please enter your GitHub username, not an email address"
	}
	return ""
}

// CheckInURL returns the URL embedded in the confirmation QR code.
func (h *Handler) CheckInURL(id uuid.UUID) string {
	return h.siteURL + "/registrations/" + id.String() + "/checkin"
}

// Register handles POST /events/:id/registrations.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := h.validate(&req); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	reg, err := h.svc.Register(c.Request.Context(), eventID, RegisterInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CorpEmail:      req.CorpEmail,
		CorpSID:        req.CorpSID,
		PersonalEmail:  req.PersonalEmail,
		GithubUsername: req.GithubUsername,
	})
	switch {
	case errors.Is(err, ErrDuplicate):
		response.Conflict(c, "corp_email: your email address has already registered for this event; check your confirmation email to find the link to edit")
		return
	case errors.Is(err, ErrEventNotOpen):
		response.BadRequest(c, "event: this event is not open for registration")
		return
	case errors.Is(err, events.ErrNotFound):
		response.NotFound(c, "event not found")
		return
	case err != nil:
		h.logger.Error("register failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to register")
		return
	}

	body := gin.H{
		"registration": reg,
		"checkin_url":  h.CheckInURL(reg.ID),
	}
	if h.s3 != nil {
		if e, err := h.svc.events.GetByID(c.Request.Context(), eventID); err == nil && e.ICSFileLocation != "" {
			if url, err := h.s3.PresignInviteDownload(c.Request.Context(), e.ICSFileLocation); err == nil {
				body["invite_url"] = url
			}
		}
	}
	response.Created(c, body)
}

// Get handles GET /registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("get registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to load registration")
		return
	}
	response.OK(c, reg)
}

// Update handles PATCH /registrations/:id. The duplicate-email guard is
// intentionally skipped on edits.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := h.validate(&req); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	reg, err := h.svc.Update(c.Request.Context(), id, RegisterInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CorpEmail:      req.CorpEmail,
		CorpSID:        req.CorpSID,
		PersonalEmail:  req.PersonalEmail,
		GithubUsername: req.GithubUsername,
	})
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("update registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to update registration")
		return
	}
	response.OK(c, reg)
}

// CheckIn handles POST /registrations/:id/checkin. A rejected transition is
// an expected outcome and still answers 200 with applied=false and a message
// naming the current status.
func (h *Handler) CheckIn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	out, err := h.svc.CheckIn(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("check-in failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to check in")
		return
	}
	response.OK(c, out)
}

// Cancel handles POST /registrations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	out, err := h.svc.Cancel(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "registration not found")
		return
	}
	if err != nil {
		h.logger.Error("cancel failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to cancel")
		return
	}
	response.OK(c, out)
}

// QR handles GET /registrations/:id/qr: a PNG QR code of the check-in URL.
func (h *Handler) QR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "registration not found")
			return
		}
		h.logger.Error("load registration for qr failed", zap.Error(err))
		response.Internal(c, "failed to render qr code")
		return
	}
	png, err := qr.EncodePNG(h.CheckInURL(id))
	if err != nil {
		h.logger.Error("encode qr failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to render qr code")
		return
	}
	c.Data(200, "image/png", png)
}

// Search handles POST /registrations/search: find the active registration
// for an event + corporate email.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	reg, err := h.svc.Search(c.Request.Context(), eventID, req.CorpEmail)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "no active registration for this event and email")
		return
	}
	if err != nil {
		h.logger.Error("search failed", zap.Error(err))
		response.Internal(c, "failed to search registrations")
		return
	}
	response.OK(c, reg)
}

// Roster handles GET /events/:id/registrations (admin).
func (h *Handler) Roster(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.svc.Roster(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("roster failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}
