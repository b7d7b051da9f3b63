package middleware

import (
	"encoding/json"
	"net/http"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// auditRoutes maps back-office write routes (gin route patterns) to actions.
var auditRoutes = map[string]struct {
	action       domain.AuditAction
	resourceType string
}{
	"POST /api/v1/admin/payouts/auto-run":   {domain.AuditActionAutoPayoutRun, "payout_batch"},
	"POST /api/v1/admin/payouts/:id/settle": {domain.AuditActionSettlePayout, "payout_request"},
	"POST /api/v1/admin/earnings/credit":    {domain.AuditActionCreditEarning, "earnings"},
}

// AuditLog records successful back-office writes after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var operatorID *string
		if id := c.GetString(CtxOperatorID); id != "" {
			operatorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			OperatorID:   operatorID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
		})
	}
}
