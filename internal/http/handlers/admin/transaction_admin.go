package admin

import (
	"errors"
	"strconv"
	"time"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func parseTimeQuery(c *gin.Context, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}

// GetCommissionTransactions 获取佣金流水列表
func (h *Handler) GetCommissionTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partyID, _ := strconv.ParseUint(c.Query("party_id"), 10, 64)

	rows, total, err := h.CommissionService.ListTransactions(repository.CommissionTransactionListFilter{
		Page:        page,
		PageSize:    pageSize,
		PartyType:   c.Query("party_type"),
		PartyID:     uint(partyID),
		OrderNo:     c.Query("order_no"),
		Status:      c.Query("status"),
		EntryType:   c.Query("entry_type"),
		PeriodKey:   c.Query("period_key"),
		CreatedFrom: parseTimeQuery(c, "created_from"),
		CreatedTo:   parseTimeQuery(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "佣金流水查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, rows, pagination)
}

// GetCommissionTransaction 获取佣金流水详情
func (h *Handler) GetCommissionTransaction(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	txn, err := h.CommissionService.GetTransaction(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			respondError(c, response.CodeNotFound, "佣金流水不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "佣金流水查询失败", err)
		return
	}

	response.Success(c, txn)
}

// AdjustCommissionRequest 人工调整请求
type AdjustCommissionRequest struct {
	Reason        string  `json:"reason" binding:"required"`
	GrossDelta    float64 `json:"gross_delta"`
	QuantityDelta int     `json:"quantity_delta"`
	Note          string  `json:"note"`
}

// AdjustCommission 对佣金流水追加调整条目
func (h *Handler) AdjustCommission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req AdjustCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	adjustment, err := h.CommissionService.AdjustCommission(service.AdjustCommissionInput{
		TransactionID: uint(id),
		Reason:        req.Reason,
		GrossDelta:    decimal.NewFromFloat(req.GrossDelta),
		QuantityDelta: req.QuantityDelta,
		Note:          req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			respondError(c, response.CodeNotFound, "佣金流水不存在", nil)
		case errors.Is(err, service.ErrTransactionNotAdjustable):
			respondError(c, response.CodeBadRequest, "该流水不可调整", nil)
		case errors.Is(err, service.ErrAdjustReasonInvalid):
			respondError(c, response.CodeBadRequest, "调整原因无效", nil)
		case errors.Is(err, service.ErrPolicyInvalid):
			respondError(c, response.CodeBadRequest, "调整参数无效", nil)
		default:
			respondError(c, response.CodeInternal, "调整失败", err)
		}
		return
	}

	response.Success(c, adjustment)
}
