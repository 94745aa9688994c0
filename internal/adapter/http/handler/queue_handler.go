package handler

import (
	"time"

	"p2p-match-engine/internal/adapter/http/dto"
	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"
	"p2p-match-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QueueHandler handles queue item endpoints.
type QueueHandler struct {
	queueSvc    ports.QueueService
	historyRepo ports.HistoryRepository
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueSvc ports.QueueService, historyRepo ports.HistoryRepository) *QueueHandler {
	return &QueueHandler{queueSvc: queueSvc, historyRepo: historyRepo}
}

// EnqueueWithdrawal handles POST /api/v1/queue/withdrawals.
func (h *QueueHandler) EnqueueWithdrawal(c *gin.Context) {
	h.enqueue(c, domain.ItemKindWithdrawal)
}

// EnqueueDeposit handles POST /api/v1/queue/deposits.
func (h *QueueHandler) EnqueueDeposit(c *gin.Context) {
	h.enqueue(c, domain.ItemKindDeposit)
}

func (h *QueueHandler) enqueue(c *gin.Context, kind domain.ItemKind) {
	var req dto.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	svcReq, err := req.ToEnqueueRequest(kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	item, err := h.queueSvc.Enqueue(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromQueueItem(item, time.Now().UTC()))
}

// ListQueue handles GET /api/v1/queue.
func (h *QueueHandler) ListQueue(c *gin.Context) {
	var query dto.QueueListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params, err := query.ToListParams()
	if err != nil {
		response.Error(c, err)
		return
	}

	items, err := h.queueSvc.ListItems(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromQueueItems(items, time.Now().UTC()))
}

// GetItem handles GET /api/v1/queue/:id. The response carries the item's
// audit trail alongside the item itself.
func (h *QueueHandler) GetItem(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	item, err := h.queueSvc.GetItem(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	history, err := h.historyRepo.ListByItem(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.OK(c, gin.H{
		"item":    dto.FromQueueItem(item, time.Now().UTC()),
		"history": dto.FromHistory(history),
	})
}

// Cancel handles POST /api/v1/queue/:id/cancel.
func (h *QueueHandler) Cancel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	item, err := h.queueSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromQueueItem(item, time.Now().UTC()))
}

// UpdateNotes handles PUT /api/v1/queue/:id/notes.
func (h *QueueHandler) UpdateNotes(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	item, err := h.queueSvc.UpdateNotes(c.Request.Context(), id, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromQueueItem(item, time.Now().UTC()))
}

// parseID extracts and validates the :id path parameter.
func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("id must be a valid UUID")
	}
	return id, nil
}
