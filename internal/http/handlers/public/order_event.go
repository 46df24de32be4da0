package public

import (
	"time"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderPaidEntry 订单支付事件中的单条分账明细
// 同一订单项分给多个参与方时投递多条明细。
type OrderPaidEntry struct {
	OrderItemID uint    `json:"order_item_id" binding:"required"`
	ProductID   uint    `json:"product_id"`
	SellerID    uint    `json:"seller_id"`
	PartyType   string  `json:"party_type" binding:"required"`
	PartyID     uint    `json:"party_id" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
}

// OrderPaidEventRequest 订单支付事件请求
type OrderPaidEventRequest struct {
	OrderNo     string           `json:"order_no" binding:"required"`
	Currency    string           `json:"currency"`
	CompletedAt string           `json:"completed_at"`
	Entries     []OrderPaidEntry `json:"entries" binding:"required,min=1"`
}

// OrderPaidEntryResult 单条明细的入账结果
type OrderPaidEntryResult struct {
	OrderItemID   uint   `json:"order_item_id"`
	PartyType     string `json:"party_type"`
	PartyID       uint   `json:"party_id"`
	TransactionID uint   `json:"transaction_id,omitempty"`
	Created       bool   `json:"created"`
}

// HandleOrderPaidEvent 接收订单支付事件并逐条入账
// 队列启用时异步投递，重复投递由唯一索引兜底，不会重复计佣。
func (h *Handler) HandleOrderPaidEvent(c *gin.Context) {
	log := requestLog(c)

	var req OrderPaidEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	completedAt := time.Now()
	if req.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339, req.CompletedAt)
		if err != nil {
			respondError(c, response.CodeBadRequest, "completed_at 格式错误", err)
			return
		}
		completedAt = t
	}

	// 队列可用时异步入账，避免回调方长时间等待
	if h.Queue.Enabled() {
		for _, entry := range req.Entries {
			payload := queue.CommissionRecordPayload{
				OrderItemID: entry.OrderItemID,
				OrderNo:     req.OrderNo,
				ProductID:   entry.ProductID,
				SellerID:    entry.SellerID,
				PartyType:   entry.PartyType,
				PartyID:     entry.PartyID,
				Quantity:    entry.Quantity,
				UnitPrice:   decimal.NewFromFloat(entry.UnitPrice).String(),
				Currency:    req.Currency,
				CompletedAt: completedAt,
			}
			if err := h.Queue.EnqueueCommissionRecord(payload); err != nil {
				log.Errorw("order_event_enqueue_failed",
					"order_no", req.OrderNo,
					"order_item_id", entry.OrderItemID,
					"error", err,
				)
				respondError(c, response.CodeInternal, "入账任务投递失败", err)
				return
			}
		}
		response.Success(c, gin.H{"accepted": len(req.Entries), "async": true})
		return
	}

	results := make([]OrderPaidEntryResult, 0, len(req.Entries))
	for _, entry := range req.Entries {
		txn, created, err := h.CommissionService.RecordCommission(service.RecordCommissionInput{
			OrderItemID: entry.OrderItemID,
			OrderNo:     req.OrderNo,
			ProductID:   entry.ProductID,
			SellerID:    entry.SellerID,
			PartyType:   entry.PartyType,
			PartyID:     entry.PartyID,
			Quantity:    entry.Quantity,
			UnitPrice:   models.NewMoneyFromDecimal(decimal.NewFromFloat(entry.UnitPrice)),
			Currency:    req.Currency,
			CompletedAt: completedAt,
		})
		if err != nil {
			respondOrderEventError(c, err)
			return
		}
		results = append(results, OrderPaidEntryResult{
			OrderItemID:   txn.OrderItemID,
			PartyType:     txn.PartyType,
			PartyID:       txn.PartyID,
			TransactionID: txn.ID,
			Created:       created,
		})
	}

	response.Success(c, gin.H{"entries": results, "async": false})
}
