package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelup-events/backend/internal/models"
	"github.com/levelup-events/backend/pkg/response"
	"github.com/levelup-events/backend/pkg/storage"
)

// EventRequest is the body for POST /events and PATCH /events/:id.
type EventRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description" binding:"required"`
	Location      string `json:"location" binding:"required"`
	NumSeats      int    `json:"num_seats" binding:"required,min=1,max=500"`
	StartDate     string `json:"start_date" binding:"required"` // RFC3339
	EndDate       string `json:"end_date" binding:"required"`   // RFC3339
	LocalTimeZone string `json:"local_time_zone" binding:"required"`
	Status        string `json:"status" binding:"required"`
}

// validate resolves the fields binding tags cannot check and returns the
// parsed window, or a field-level message.
func (req *EventRequest) validate() (start, end time.Time, msg string) {
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return start, end, "start_date: must be an RFC3339 timestamp"
	}
	end, err = time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return start, end, "end_date: must be an RFC3339 timestamp"
	}
	if !end.After(start) {
		return start, end, "end_date: must be after start_date"
	}
	if _, err := time.LoadLocation(req.LocalTimeZone); err != nil {
		return start, end, "local_time_zone: must be an IANA timezone name"
	}
	if _, ok := models.EventStatuses[req.Status]; !ok {
		return start, end, "status: must be one of open, closed, done"
	}
	return start, end, ""
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3 // nil when S3 is disabled
	logger *zap.Logger
}

// NewHandler creates an events handler. s3 may be nil.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// ListOpen handles GET /events (public).
func (h *Handler) ListOpen(c *gin.Context) {
	list, err := h.repo.ListOpen(c.Request.Context())
	if err != nil {
		h.logger.Error("list open events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// List handles GET /admin/events (admin; includes closed and done).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, e)
}

// Create handles POST /events (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, end, msg := req.validate()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	e := &models.Event{
		Name:          req.Name,
		Description:   req.Description,
		Location:      req.Location,
		NumSeats:      req.NumSeats,
		StartDate:     start,
		EndDate:       end,
		LocalTimeZone: req.LocalTimeZone,
		Status:        req.Status,
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Update handles PATCH /events/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, end, msg := req.validate()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("load event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update event")
		return
	}
	e.Name = req.Name
	e.Description = req.Description
	e.Location = req.Location
	e.NumSeats = req.NumSeats
	e.StartDate = start
	e.EndDate = end
	e.LocalTimeZone = req.LocalTimeZone
	e.Status = req.Status
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (admin only). Unconditional: existing
// registrations are left in place.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("delete event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// UploadInvite handles POST /events/:id/invite (admin only): stores the
// event's iCal invite in S3 and records its object key.
func (h *Handler) UploadInvite(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("load event failed", zap.Error(err))
		response.Internal(c, "failed to upload invite")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file: a multipart file upload is required")
		return
	}
	defer file.Close()
	if !storage.ValidateInviteFile(header.Header.Get("Content-Type"), header.Filename) {
		response.BadRequest(c, "file: only .ics calendar files are accepted")
		return
	}

	key, err := h.s3.UploadInvite(c.Request.Context(), id.String(), file)
	if err != nil {
		h.logger.Error("upload invite failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to upload invite")
		return
	}
	if err := h.repo.SetInviteLocation(c.Request.Context(), id, key); err != nil {
		h.logger.Error("record invite location failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to record invite location")
		return
	}
	response.OK(c, gin.H{"event_id": id, "ics_file_location": key})
}
