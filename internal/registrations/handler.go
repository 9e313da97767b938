package registrations

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingle-rounds/backend/internal/matching"
	"github.com/mingle-rounds/backend/internal/models"
	"github.com/mingle-rounds/backend/internal/participants"
	"github.com/mingle-rounds/backend/internal/sessions"
	"github.com/mingle-rounds/backend/pkg/response"
)

// Reasons written by user-reported outcomes.
const (
	reasonPartnerNoShow = "your partners did not show up"
	reasonMissedMeeting = "you were reported as a no-show"
)

// confirmSettled reports whether the status already implies a successful
// confirmation. A repeated confirm returns the registration as-is instead
// of tripping the window checks; clients retry these calls on flaky
// connections.
func confirmSettled(s models.RegistrationStatus) bool {
	switch s {
	case models.StatusConfirmed, models.StatusMatched, models.StatusNoMatch,
		models.StatusCheckedIn, models.StatusAwaitingMeet, models.StatusMet,
		models.StatusMissed, models.StatusLeftAlone, models.StatusCompleted:
		return true
	}
	return false
}

// checkInSettled reports whether the participant already checked in, so a
// repeated check-in is a no-op success.
func checkInSettled(s models.RegistrationStatus) bool {
	switch s {
	case models.StatusCheckedIn, models.StatusAwaitingMeet, models.StatusMet:
		return true
	}
	return false
}

// Handler handles the participant-facing registration lifecycle. All routes
// authenticate with the participant's session access token.
type Handler struct {
	repo         *Repository
	participants *participants.Repository
	sessions     *sessions.Repository
	events       matching.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewHandler creates a registrations handler. events may be nil.
func NewHandler(repo *Repository, participantsRepo *participants.Repository, sessionsRepo *sessions.Repository, events matching.EventPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:         repo,
		participants: participantsRepo,
		sessions:     sessionsRepo,
		events:       events,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *Handler) participant(c *gin.Context) (*models.Participant, bool) {
	p, err := h.participants.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.NotFound(c, "participant not found")
		return nil, false
	}
	return p, true
}

// ownRegistration resolves the :id registration and verifies it belongs to
// the token's participant.
func (h *Handler) ownRegistration(c *gin.Context, p *models.Participant) (*models.Registration, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return nil, false
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "registration not found")
		return nil, false
	}
	if reg.ParticipantID != p.ID {
		response.Forbidden(c, "registration belongs to another participant")
		return nil, false
	}
	return reg, true
}

func (h *Handler) publish(roundID uuid.UUID, reg *models.Registration) {
	if h.events == nil {
		return
	}
	h.events.PublishRoundEvent(roundID, "status_changed", gin.H{
		"registration_id": reg.ID,
		"participant_id":  reg.ParticipantID,
		"status":          reg.Status,
		"status_reason":   reg.StatusReason,
	})
}

// Register handles POST /participants/:token/rounds/:rid/register.
func (h *Handler) Register(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	roundID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		response.BadRequest(c, "invalid round id")
		return
	}
	round, err := h.sessions.GetRound(c.Request.Context(), p.SessionID, roundID)
	if err != nil {
		response.NotFound(c, "round not found")
		return
	}
	if round.Started(h.now()) {
		response.Conflict(c, "registration closed, the round has started")
		return
	}
	reg, err := h.repo.Create(c.Request.Context(), p.ID, p.SessionID, round.ID, p.NotifyEnabled)
	if err != nil {
		h.logger.Error("register for round failed", zap.Error(err), zap.String("round_id", round.ID.String()))
		response.Internal(c, "failed to register")
		return
	}
	response.Created(c, reg)
}

// Confirm handles POST /participants/:token/registrations/:id/confirm.
// Confirmation is accepted only inside the round's confirmation window,
// which closes when the round starts. Repeats after the status advanced
// past confirmed succeed without changing anything.
func (h *Handler) Confirm(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	reg, ok := h.ownRegistration(c, p)
	if !ok {
		return
	}
	if confirmSettled(reg.Status) {
		response.OK(c, reg)
		return
	}
	round, err := h.sessions.GetRound(c.Request.Context(), reg.SessionID, reg.RoundID)
	if err != nil {
		response.NotFound(c, "round not found")
		return
	}
	now := h.now()
	if now.Before(round.ConfirmationOpensAt()) {
		response.Conflict(c, "confirmation window has not opened yet")
		return
	}
	if round.Started(now) {
		response.Conflict(c, "confirmation window has closed")
		return
	}
	if err := h.repo.Confirm(c.Request.Context(), reg.ID); err != nil {
		if errors.Is(err, ErrNoTransition) {
			response.Conflict(c, "registration can no longer be confirmed")
			return
		}
		response.Internal(c, "failed to confirm attendance")
		return
	}
	reg.Status = models.StatusConfirmed
	t := now
	reg.ConfirmedAt = &t
	h.publish(reg.RoundID, reg)
	response.OK(c, reg)
}

// CheckIn handles POST /participants/:token/registrations/:id/checkin.
// Once every group member has checked in, the whole group moves to
// awaiting_meet.
func (h *Handler) CheckIn(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	reg, ok := h.ownRegistration(c, p)
	if !ok {
		return
	}
	if checkInSettled(reg.Status) {
		response.OK(c, reg)
		return
	}
	if err := h.repo.CheckIn(c.Request.Context(), reg.ID); err != nil {
		if errors.Is(err, ErrNoTransition) {
			response.Conflict(c, "check-in requires a matched registration")
			return
		}
		response.Internal(c, "failed to check in")
		return
	}
	reg.Status = models.StatusCheckedIn
	h.publish(reg.RoundID, reg)

	if reg.MatchID != nil {
		if err := h.advanceGroupIfReady(c, *reg.MatchID); err != nil {
			h.logger.Error("advance group after check-in failed", zap.Error(err),
				zap.String("match_id", reg.MatchID.String()))
		}
	}
	response.OK(c, reg)
}

// advanceGroupIfReady moves all members to awaiting_meet once every member
// of the match has checked in.
func (h *Handler) advanceGroupIfReady(c *gin.Context, matchID uuid.UUID) error {
	members, err := h.repo.ListForMatch(c.Request.Context(), matchID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.Status != models.StatusCheckedIn {
			return nil
		}
		ids = append(ids, m.ID)
	}
	if err := h.repo.SetStatusAll(c.Request.Context(), ids, models.StatusAwaitingMeet, ""); err != nil {
		return err
	}
	for _, m := range members {
		m.Status = models.StatusAwaitingMeet
		h.publish(m.RoundID, &m)
	}
	return nil
}

// ConfirmMeet handles POST /participants/:token/registrations/:id/meet.
// When every member has confirmed, the whole group lands in met.
func (h *Handler) ConfirmMeet(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	reg, ok := h.ownRegistration(c, p)
	if !ok {
		return
	}
	if err := h.repo.MarkMeetConfirmed(c.Request.Context(), reg.ID); err != nil {
		if errors.Is(err, ErrNoTransition) {
			response.Conflict(c, "meeting confirmation requires a checked-in registration")
			return
		}
		response.Internal(c, "failed to confirm meeting")
		return
	}

	if reg.MatchID != nil {
		members, err := h.repo.ListForMatch(c.Request.Context(), *reg.MatchID)
		if err == nil {
			all := true
			ids := make([]uuid.UUID, 0, len(members))
			for _, m := range members {
				if m.MetConfirmedAt == nil && m.ID != reg.ID {
					all = false
					break
				}
				ids = append(ids, m.ID)
			}
			if all {
				if err := h.repo.SetStatusAll(c.Request.Context(), ids, models.StatusMet, ""); err != nil {
					h.logger.Error("mark group met failed", zap.Error(err))
				} else {
					for _, m := range members {
						m.Status = models.StatusMet
						h.publish(m.RoundID, &m)
					}
					reg.Status = models.StatusMet
				}
			}
		}
	}
	response.OK(c, reg)
}

// ReportNoShow handles POST /participants/:token/registrations/:id/no-show.
// The reporter ends up left_alone; partners who never checked in are marked
// missed.
func (h *Handler) ReportNoShow(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	reg, ok := h.ownRegistration(c, p)
	if !ok {
		return
	}
	if reg.Status != models.StatusCheckedIn && reg.Status != models.StatusAwaitingMeet {
		response.Conflict(c, "only a checked-in participant can report a no-show")
		return
	}
	if err := h.repo.SetStatus(c.Request.Context(), reg.ID, models.StatusLeftAlone, reasonPartnerNoShow); err != nil {
		response.Internal(c, "failed to report no-show")
		return
	}
	reg.Status = models.StatusLeftAlone
	reg.StatusReason = reasonPartnerNoShow
	h.publish(reg.RoundID, reg)

	if reg.MatchID != nil {
		members, err := h.repo.ListForMatch(c.Request.Context(), *reg.MatchID)
		if err == nil {
			for _, m := range members {
				if m.ID == reg.ID || m.CheckedInAt != nil || m.Status.Terminal() {
					continue
				}
				if err := h.repo.SetStatus(c.Request.Context(), m.ID, models.StatusMissed, reasonMissedMeeting); err != nil {
					h.logger.Error("mark partner missed failed", zap.Error(err))
					continue
				}
				m.Status = models.StatusMissed
				m.StatusReason = reasonMissedMeeting
				h.publish(m.RoundID, &m)
			}
		}
	}
	response.OK(c, reg)
}

// Cancel handles POST /participants/:token/registrations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	reg, ok := h.ownRegistration(c, p)
	if !ok {
		return
	}
	if err := h.repo.Cancel(c.Request.Context(), reg.ID); err != nil {
		if errors.Is(err, ErrNoTransition) {
			response.Conflict(c, "registration already reached a final state")
			return
		}
		response.Internal(c, "failed to cancel registration")
		return
	}
	reg.Status = models.StatusCancelled
	h.publish(reg.RoundID, reg)
	response.OK(c, reg)
}
