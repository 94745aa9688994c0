package handler

import (
	"p2p-match-engine/internal/adapter/http/dto"
	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"
	"p2p-match-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// MatchHandler handles match moderation endpoints.
type MatchHandler struct {
	queueSvc    ports.QueueService
	historyRepo ports.HistoryRepository
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(queueSvc ports.QueueService, historyRepo ports.HistoryRepository) *MatchHandler {
	return &MatchHandler{queueSvc: queueSvc, historyRepo: historyRepo}
}

// ListMatches handles GET /api/v1/matches.
func (h *MatchHandler) ListMatches(c *gin.Context) {
	var state *domain.MatchState
	if raw := c.Query("state"); raw != "" {
		s := domain.MatchState(raw)
		if !s.IsValid() {
			response.Error(c, apperror.Validation("unknown match state"))
			return
		}
		state = &s
	}

	matches, err := h.queueSvc.ListMatches(c.Request.Context(), state)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromMatches(matches))
}

// GetMatch handles GET /api/v1/matches/:id. The response carries the
// match's audit trail alongside the match itself.
func (h *MatchHandler) GetMatch(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	match, err := h.queueSvc.GetMatch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	history, err := h.historyRepo.ListByMatch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.OK(c, gin.H{
		"match":   dto.FromMatch(match),
		"history": dto.FromHistory(history),
	})
}

// Approve handles POST /api/v1/matches/:id/approve.
func (h *MatchHandler) Approve(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	match, err := h.queueSvc.ApproveMatch(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromMatch(match))
}

// Reject handles POST /api/v1/matches/:id/reject.
func (h *MatchHandler) Reject(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	match, err := h.queueSvc.RejectMatch(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromMatch(match))
}

// Complete handles POST /api/v1/matches/:id/complete. This records the
// external settlement signal for an approved match.
func (h *MatchHandler) Complete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	match, err := h.queueSvc.MarkCompleted(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromMatch(match))
}
