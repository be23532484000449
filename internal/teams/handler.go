package teams

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/levelup-events/backend/internal/models"
	"github.com/levelup-events/backend/pkg/response"
)

// CreateRequest is the body for POST /teams.
type CreateRequest struct {
	TableNumber int    `json:"table_number" binding:"required,min=1"`
	Name        string `json:"name" binding:"required"`
	NumMembers  int    `json:"num_members" binding:"required"`
	TechStack   string `json:"tech_stack" binding:"required"`
	RepoURL     string `json:"repo_url" binding:"omitempty,url"`
	EnvURL      string `json:"env_url" binding:"omitempty,url"`
}

// validate returns a field-level message, empty when valid.
func (req *CreateRequest) validate() string {
	if req.NumMembers < models.TeamMinMembers || req.NumMembers > models.TeamMaxMembers {
		return fmt.Sprintf("num_members: total number of people on the team must be %d-%d", models.TeamMinMembers, models.TeamMaxMembers)
	}
	if _, ok := models.TeamTechStacks[req.TechStack]; !ok {
		return "tech_stack: must be one of dotnet, java, python"
	}
	return ""
}

// Handler handles team HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /teams.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	t := &models.Team{
		TeamNumber: req.TableNumber,
		Name:       req.Name,
		NumMembers: req.NumMembers,
		TechStack:  req.TechStack,
		RepoURL:    req.RepoURL,
		EnvURL:     req.EnvURL,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		if errors.Is(err, ErrTableTaken) {
			response.Conflict(c, "table_number: that table is already taken, pick another")
			return
		}
		h.logger.Error("create team failed", zap.Error(err), zap.Int("table_number", req.TableNumber))
		response.Internal(c, "failed to create team")
		return
	}
	response.Created(c, t)
}

// List handles GET /teams.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list teams failed", zap.Error(err))
		response.Internal(c, "failed to list teams")
		return
	}
	response.OK(c, list)
}
