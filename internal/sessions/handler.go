package sessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/middleware"
	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/pkg/response"
)

// Handler handles session, round, and meeting point HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	MatchingPolicy string     `json:"matching_policy"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	policy := models.MatchingPolicy(req.MatchingPolicy)
	if req.MatchingPolicy == "" {
		policy = models.PolicyAcrossTeams
	}
	if !policy.Valid() {
		response.BadRequest(c, "invalid matching_policy")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	s := &models.Session{
		Title:          req.Title,
		Description:    req.Description,
		MatchingPolicy: policy,
		CreatedBy:      userID,
		OrganizationID: req.OrganizationID,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, s)
}

// UpdateSessionRequest is the body for PATCH /sessions/:id.
type UpdateSessionRequest struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	MatchingPolicy *string `json:"matching_policy,omitempty"`
}

// Update handles PATCH /sessions/:id.
func (h *Handler) Update(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.MatchingPolicy != nil {
		policy := models.MatchingPolicy(*req.MatchingPolicy)
		if !policy.Valid() {
			response.BadRequest(c, "invalid matching_policy")
			return
		}
		s.MatchingPolicy = policy
	}
	if err := h.repo.Update(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to update session")
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /sessions/:id.
func (h *Handler) Delete(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), sessionID); err != nil {
		response.Internal(c, "failed to delete session")
		return
	}
	response.NoContent(c)
}

// CreateRoundRequest is the body for POST /sessions/:id/rounds.
type CreateRoundRequest struct {
	StartsAt                  time.Time `json:"starts_at" binding:"required"`
	DurationMinutes           int       `json:"duration_minutes" binding:"required,min=5"`
	GroupSize                 int       `json:"group_size" binding:"required,min=2,max=6"`
	ConfirmationWindowMinutes int       `json:"confirmation_window_minutes" binding:"required,min=5"`
}

// CreateRound handles POST /sessions/:id/rounds.
func (h *Handler) CreateRound(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CreateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rd := &models.Round{
		SessionID:                 sessionID,
		StartsAt:                  req.StartsAt,
		DurationMinutes:           req.DurationMinutes,
		GroupSize:                 req.GroupSize,
		ConfirmationWindowMinutes: req.ConfirmationWindowMinutes,
	}
	if err := h.repo.CreateRound(c.Request.Context(), rd); err != nil {
		h.logger.Error("create round failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to create round")
		return
	}
	response.Created(c, rd)
}

// ListRounds handles GET /sessions/:id/rounds.
func (h *Handler) ListRounds(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListRounds(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list rounds")
		return
	}
	response.OK(c, list)
}

// UpdateRoundRequest is the body for PATCH /sessions/:id/rounds/:rid.
type UpdateRoundRequest struct {
	StartsAt                  *time.Time `json:"starts_at,omitempty"`
	DurationMinutes           *int       `json:"duration_minutes,omitempty"`
	GroupSize                 *int       `json:"group_size,omitempty"`
	ConfirmationWindowMinutes *int       `json:"confirmation_window_minutes,omitempty"`
}

// UpdateRound handles PATCH /sessions/:id/rounds/:rid.
func (h *Handler) UpdateRound(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	roundID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		response.BadRequest(c, "invalid round id")
		return
	}
	var req UpdateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rd, err := h.repo.GetRound(c.Request.Context(), sessionID, roundID)
	if err != nil {
		response.NotFound(c, "round not found")
		return
	}
	if req.StartsAt != nil {
		rd.StartsAt = *req.StartsAt
	}
	if req.DurationMinutes != nil {
		rd.DurationMinutes = *req.DurationMinutes
	}
	if req.GroupSize != nil {
		rd.GroupSize = *req.GroupSize
	}
	if req.ConfirmationWindowMinutes != nil {
		rd.ConfirmationWindowMinutes = *req.ConfirmationWindowMinutes
	}
	if err := h.repo.UpdateRound(c.Request.Context(), rd); err != nil {
		response.Internal(c, "failed to update round")
		return
	}
	response.OK(c, rd)
}

// CreateMeetingPointRequest is the body for POST /sessions/:id/meeting-points.
type CreateMeetingPointRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// CreateMeetingPoint handles POST /sessions/:id/meeting-points.
func (h *Handler) CreateMeetingPoint(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CreateMeetingPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	mp := &models.MeetingPoint{
		SessionID:   sessionID,
		Name:        req.Name,
		Description: req.Description,
		Position:    req.Position,
	}
	if err := h.repo.CreateMeetingPoint(c.Request.Context(), mp); err != nil {
		response.Internal(c, "failed to create meeting point")
		return
	}
	response.Created(c, mp)
}

// ListMeetingPoints handles GET /sessions/:id/meeting-points.
func (h *Handler) ListMeetingPoints(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListMeetingPoints(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list meeting points")
		return
	}
	response.OK(c, list)
}

// DeleteMeetingPoint handles DELETE /sessions/:id/meeting-points/:pid.
func (h *Handler) DeleteMeetingPoint(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	pointID, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid meeting point id")
		return
	}
	if err := h.repo.DeleteMeetingPoint(c.Request.Context(), sessionID, pointID); err != nil {
		response.Internal(c, "failed to delete meeting point")
		return
	}
	response.NoContent(c)
}
