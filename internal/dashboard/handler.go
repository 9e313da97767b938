package dashboard

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/internal/participants"
	"github.com/mingle-rounds/backend/internal/reconcile"
	"github.com/mingle-rounds/backend/internal/registrations"
	"github.com/mingle-rounds/backend/internal/sessions"
	"github.com/mingle-rounds/backend/pkg/response"
)

// RoundView is one registration enriched with its round and, when matched,
// the assigned meeting point.
type RoundView struct {
	Round        models.Round         `json:"round"`
	Registration models.Registration  `json:"registration"`
	MeetingPoint *models.MeetingPoint `json:"meeting_point,omitempty"`
}

// View is the full dashboard payload for one participant.
type View struct {
	Participant *models.Participant `json:"participant"`
	Session     *models.Session     `json:"session"`
	Rounds      []RoundView         `json:"rounds"`
}

// Handler serves the participant dashboard. Every view opportunistically
// reconciles stale statuses against the clock before rendering.
type Handler struct {
	participants  *participants.Repository
	registrations *registrations.Repository
	sessions      *sessions.Repository
	reconciler    *reconcile.Reconciler
	logger        *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(participantsRepo *participants.Repository, registrationsRepo *registrations.Repository, sessionsRepo *sessions.Repository, reconciler *reconcile.Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		participants:  participantsRepo,
		registrations: registrationsRepo,
		sessions:      sessionsRepo,
		reconciler:    reconciler,
		logger:        logger,
	}
}

// Get handles GET /dashboard/:token. The optional ?at=RFC3339 query pins
// the reconciliation clock, which keeps integration runs reproducible.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.participants.GetByToken(ctx, c.Param("token"))
	if err != nil {
		response.NotFound(c, "participant not found")
		return
	}
	session, err := h.sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		response.Internal(c, "failed to load session")
		return
	}

	now := time.Now()
	if at := c.Query("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			response.BadRequest(c, "invalid at timestamp, expected RFC3339")
			return
		}
		now = parsed
	}

	regs, err := h.registrations.ListForParticipant(ctx, p.ID)
	if err != nil {
		response.Internal(c, "failed to load registrations")
		return
	}

	rounds, err := h.sessions.ListRounds(ctx, p.SessionID)
	if err != nil {
		response.Internal(c, "failed to load rounds")
		return
	}
	roundByID := make(map[uuid.UUID]models.Round, len(rounds))
	for _, r := range rounds {
		roundByID[r.ID] = r
	}

	points, err := h.sessions.ListMeetingPoints(ctx, p.SessionID)
	if err != nil {
		response.Internal(c, "failed to load meeting points")
		return
	}
	pointByID := make(map[uuid.UUID]models.MeetingPoint, len(points))
	for _, mp := range points {
		pointByID[mp.ID] = mp
	}

	views := make([]RoundView, 0, len(regs))
	for i := range regs {
		reg := &regs[i]
		round, ok := roundByID[reg.RoundID]
		if !ok {
			continue
		}
		if h.reconciler != nil {
			if _, err := h.reconciler.Reconcile(ctx, reg, &round, now); err != nil {
				h.logger.Warn("reconcile registration failed",
					zap.String("registration_id", reg.ID.String()), zap.Error(err))
			}
		}
		view := RoundView{Round: round, Registration: *reg}
		if reg.MeetingPointID != nil {
			if mp, ok := pointByID[*reg.MeetingPointID]; ok {
				view.MeetingPoint = &mp
			}
		}
		views = append(views, view)
	}

	response.OK(c, View{Participant: p, Session: session, Rounds: views})
}
