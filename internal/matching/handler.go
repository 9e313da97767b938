package matching

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/pkg/response"
)

// Handler exposes the operator matching surface.
type Handler struct {
	orchestrator *Orchestrator
	repo         *Repository
	logger       *zap.Logger
}

// NewHandler creates a matching handler.
func NewHandler(orchestrator *Orchestrator, repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orchestrator: orchestrator, repo: repo, logger: logger}
}

func parseIDs(c *gin.Context) (sessionID, roundID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, uuid.Nil, false
	}
	roundID, err = uuid.Parse(c.Param("rid"))
	if err != nil {
		response.BadRequest(c, "invalid round id")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, roundID, true
}

// Trigger handles POST /sessions/:id/rounds/:rid/match. Synchronous:
// the operator gets the run's Result, or AlreadyCompleted when a completed
// lock exists.
func (h *Handler) Trigger(c *gin.Context) {
	sessionID, roundID, ok := parseIDs(c)
	if !ok {
		return
	}
	res, err := h.orchestrator.Run(c.Request.Context(), sessionID, roundID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrRoundNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("operator matching run failed",
			zap.String("round_id", roundID.String()), zap.Error(err))
		response.Internal(c, "matching run failed")
		return
	}
	response.OK(c, res)
}

// LockStatus handles GET /sessions/:id/rounds/:rid/matching-lock.
func (h *Handler) LockStatus(c *gin.Context) {
	sessionID, roundID, ok := parseIDs(c)
	if !ok {
		return
	}
	lock, err := h.repo.GetLock(c.Request.Context(), sessionID, roundID)
	if err != nil {
		response.Internal(c, "failed to load matching lock")
		return
	}
	if lock == nil {
		response.NotFound(c, "matching has not run for this round")
		return
	}
	response.OK(c, lock)
}

// ListMatches handles GET /sessions/:id/matches.
func (h *Handler) ListMatches(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	matches, err := h.repo.ListMatchesForSession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list matches")
		return
	}
	response.OK(c, matches)
}
