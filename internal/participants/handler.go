package participants

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/pkg/response"
	"github.com/mingle-rounds/backend/pkg/utils"
)

// Handler handles participant HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a participants handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// EnrollRequest is the body for POST /sessions/:id/participants.
type EnrollRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	FullName string   `json:"full_name" binding:"required"`
	Team     string   `json:"team"`
	Topics   []string `json:"topics"`
}

// EnrollResponse returns the participant with their access token; the
// token is the participant's credential for the whole session.
type EnrollResponse struct {
	Participant *models.Participant `json:"participant"`
	AccessToken string              `json:"access_token"`
}

// Enroll handles POST /sessions/:id/participants (organizer-driven import).
func (h *Handler) Enroll(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	token, err := utils.GenerateToken()
	if err != nil {
		response.Internal(c, "failed to generate access token")
		return
	}
	p := &models.Participant{
		SessionID:     sessionID,
		Email:         req.Email,
		FullName:      req.FullName,
		Team:          req.Team,
		Topics:        req.Topics,
		NotifyEnabled: true,
		AccessToken:   token,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("enroll participant failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to enroll participant")
		return
	}
	response.Created(c, EnrollResponse{Participant: p, AccessToken: p.AccessToken})
}

// List handles GET /sessions/:id/participants.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, list)
}

// Me handles GET /participants/:token (self profile).
func (h *Handler) Me(c *gin.Context) {
	p, err := h.repo.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.NotFound(c, "participant not found")
		return
	}
	response.OK(c, p)
}

// UpdateProfileRequest is the body for PATCH /participants/:token.
type UpdateProfileRequest struct {
	Team          *string  `json:"team,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	NotifyEnabled *bool    `json:"notify_enabled,omitempty"`
}

// UpdateProfile handles PATCH /participants/:token.
func (h *Handler) UpdateProfile(c *gin.Context) {
	p, err := h.repo.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.NotFound(c, "participant not found")
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Team != nil {
		p.Team = *req.Team
	}
	if req.Topics != nil {
		p.Topics = req.Topics
	}
	if req.NotifyEnabled != nil {
		p.NotifyEnabled = *req.NotifyEnabled
	}
	if err := h.repo.UpdateProfile(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, p)
}
