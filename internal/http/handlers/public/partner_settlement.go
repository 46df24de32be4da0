package public

import (
	"errors"
	"strconv"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetPartnerSettlements 合作方查询结算批次列表
func (h *Handler) GetPartnerSettlements(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	partyID, _ := strconv.ParseUint(c.Query("party_id"), 10, 64)

	rows, total, err := h.SettlementService.ListBatches(repository.SettlementBatchListFilter{
		Page:      page,
		PageSize:  pageSize,
		PartyType: c.Query("party_type"),
		PartyID:   uint(partyID),
		Status:    c.Query("status"),
		PeriodKey: c.Query("period_key"),
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

// GetPartnerSettlement 合作方按批次号查询结算详情
func (h *Handler) GetPartnerSettlement(c *gin.Context) {
	batchNo := c.Param("batch_no")
	if batchNo == "" {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	batch, err := h.SettlementService.GetBatchByNo(batchNo)
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
