package admin

import (
	"errors"
	"strconv"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetSettlementBatches 获取结算批次列表
func (h *Handler) GetSettlementBatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partyID, _ := strconv.ParseUint(c.Query("party_id"), 10, 64)

	rows, total, err := h.SettlementService.ListBatches(repository.SettlementBatchListFilter{
		Page:        page,
		PageSize:    pageSize,
		PartyType:   c.Query("party_type"),
		PartyID:     uint(partyID),
		Status:      c.Query("status"),
		PeriodKey:   c.Query("period_key"),
		BatchNo:     c.Query("batch_no"),
		CreatedFrom: parseTimeQuery(c, "created_from"),
		CreatedTo:   parseTimeQuery(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "结算批次查询失败", err)
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

// GetSettlementBatch 获取结算批次详情（含明细）
func (h *Handler) GetSettlementBatch(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	batch, err := h.SettlementService.GetBatch(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			respondError(c, response.CodeNotFound, "结算批次不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "结算批次查询失败", err)
		return
	}
	items, err := h.SettlementService.ListBatchItems(batch.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "结算批次查询失败", err)
		return
	}

	response.Success(c, gin.H{
		"batch": batch,
		"items": items,
	})
}

// GetSettlementBatchLogs 获取结算批次日志
func (h *Handler) GetSettlementBatchLogs(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	logs, err := h.SettlementService.ListBatchLogs(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			respondError(c, response.CodeNotFound, "结算批次不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "结算日志查询失败", err)
		return
	}

	response.Success(c, logs)
}

// BuildSettlementBatchRequest 构建结算批次请求
type BuildSettlementBatchRequest struct {
	PartyType string `json:"party_type" binding:"required"`
	PartyID   uint   `json:"party_id" binding:"required"`
	PeriodKey string `json:"period_key" binding:"required"`
}

// BuildSettlementBatch 构建（或重算）结算批次
func (h *Handler) BuildSettlementBatch(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	var req BuildSettlementBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	batch, err := h.SettlementService.BuildBatch(req.PartyType, req.PartyID, req.PeriodKey, adminActor(adminID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPartyTypeInvalid):
			respondError(c, response.CodeBadRequest, "参与方类型无效", nil)
		case errors.Is(err, service.ErrPeriodInvalid):
			respondError(c, response.CodeBadRequest, "结算周期格式错误", nil)
		case errors.Is(err, service.ErrStaleRecalculation):
			respondError(c, response.CodeConflict, "批次已确认或已打款，禁止重算", nil)
		case errors.Is(err, service.ErrInvariantViolation):
			respondError(c, response.CodeInternal, "批次金额校验失败", err)
		default:
			respondError(c, response.CodeInternal, "批次构建失败", err)
		}
		return
	}

	response.Success(c, batch)
}

// BuildAllSettlementBatchesRequest 全量构建请求
type BuildAllSettlementBatchesRequest struct {
	PeriodKey string `json:"period_key" binding:"required"`
}

// BuildAllSettlementBatches 为周期内所有参与方构建批次
func (h *Handler) BuildAllSettlementBatches(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	var req BuildAllSettlementBatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	count, err := h.SettlementService.BuildAllBatches(req.PeriodKey, adminActor(adminID))
	if err != nil {
		if errors.Is(err, service.ErrPeriodInvalid) {
			respondError(c, response.CodeBadRequest, "结算周期格式错误", nil)
			return
		}
		respondError(c, response.CodeInternal, "批次构建失败", err)
		return
	}

	response.Success(c, gin.H{"triggered": count})
}

// ConfirmSettlementBatch 确认结算批次
func (h *Handler) ConfirmSettlementBatch(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	batch, err := h.SettlementService.ConfirmBatch(uint(id), adminActor(adminID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			respondError(c, response.CodeNotFound, "结算批次不存在", nil)
		case errors.Is(err, service.ErrBatchStatusInvalid):
			respondError(c, response.CodeConflict, "当前状态不允许确认", nil)
		default:
			respondError(c, response.CodeInternal, "批次确认失败", err)
		}
		return
	}

	response.Success(c, batch)
}

// CancelSettlementBatchRequest 取消批次请求
type CancelSettlementBatchRequest struct {
	Reason string `json:"reason"`
}

// CancelSettlementBatch 取消结算批次
func (h *Handler) CancelSettlementBatch(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req CancelSettlementBatchRequest
	_ = c.ShouldBindJSON(&req)

	batch, err := h.SettlementService.CancelBatch(uint(id), adminActor(adminID), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			respondError(c, response.CodeNotFound, "结算批次不存在", nil)
		case errors.Is(err, service.ErrBatchStatusInvalid):
			respondError(c, response.CodeConflict, "当前状态不允许取消", nil)
		default:
			respondError(c, response.CodeInternal, "批次取消失败", err)
		}
		return
	}

	response.Success(c, batch)
}

// RequestSettlementPayout 对已确认批次重新发起打款
func (h *Handler) RequestSettlementPayout(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.SettlementService.RequestPayout(c.Request.Context(), uint(id)); err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			respondError(c, response.CodeNotFound, "结算批次不存在", nil)
		case errors.Is(err, service.ErrBatchStatusInvalid):
			respondError(c, response.CodeConflict, "当前状态不允许发起打款", nil)
		default:
			respondError(c, response.CodeInternal, "发起打款失败", err)
		}
		return
	}

	response.Success(c, nil)
}

func adminActor(adminID uint) string {
	return "admin:" + strconv.FormatUint(uint64(adminID), 10)
}
