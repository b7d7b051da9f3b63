package handler

import (
	"context"

	"tutor-ledger/internal/adapter/http/dto"
	"tutor-ledger/internal/adapter/http/middleware"
	redisStore "tutor-ledger/internal/adapter/storage/redis"
	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"
	"tutor-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the back-office ledger endpoints.
type AdminHandler struct {
	payoutSvc ports.PayoutService
	ledgerSvc ports.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(payoutSvc ports.PayoutService, ledgerSvc ports.LedgerService) *AdminHandler {
	return &AdminHandler{payoutSvc: payoutSvc, ledgerSvc: ledgerSvc}
}

// RunAutoPayouts handles POST /api/v1/admin/payouts/auto-run.
func (h *AdminHandler) RunAutoPayouts(c *gin.Context) {
	report, err := h.payoutSvc.RunAutoPayouts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// SettlePayout handles POST /api/v1/admin/payouts/:id/settle.
func (h *AdminHandler) SettlePayout(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid payout request id"))
		return
	}

	var req dto.SettlePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	p, err := h.ledgerSvc.SettlePayout(c.Request.Context(), ports.SettleRequest{
		RequestID:   requestID,
		Status:      req.Status,
		ProcessedBy: c.GetString(middleware.CtxOperatorID),
		Notes:       req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPayoutResponse(p))
}

// CreditEarning handles POST /api/v1/admin/earnings/credit.
func (h *AdminHandler) CreditEarning(c *gin.Context) {
	var req dto.CreditEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid actor id"))
		return
	}

	e, err := h.ledgerSvc.CreditEarning(c.Request.Context(), ports.CreditRequest{
		ActorID:  actorID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewBalancesResponse(domain.NewBalances(e, nil)))
}

// GetBalances handles GET /api/v1/admin/actors/:actor_id/balances.
func (h *AdminHandler) GetBalances(c *gin.Context) {
	actorID, ok := actorParam(c)
	if !ok {
		return
	}

	b, err := h.ledgerSvc.GetBalances(c.Request.Context(), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalancesResponse(b))
}

// ListPayouts handles GET /api/v1/admin/actors/:actor_id/payouts.
func (h *AdminHandler) ListPayouts(c *gin.Context) {
	actorID, ok := actorParam(c)
	if !ok {
		return
	}

	var q dto.ListPayoutsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	payouts, err := h.ledgerSvc.ListPayouts(c.Request.Context(), actorID, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		items = append(items, dto.NewPayoutResponse(p))
	}
	response.OK(c, items)
}

func actorParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("actor_id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid actor id"))
		return uuid.Nil, false
	}
	return id, true
}

// QueueInspector reports sync queue depths.
type QueueInspector interface {
	Stats(ctx context.Context) (*redisStore.QueueStats, error)
}

// SyncQueueStats handles GET /api/v1/admin/sync/queue. A growing dead list
// means balances drifted and need a manual resync.
func SyncQueueStats(q QueueInspector) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := q.Stats(c.Request.Context())
		if err != nil {
			response.Error(c, apperror.InternalError(err))
			return
		}
		response.OK(c, stats)
	}
}
