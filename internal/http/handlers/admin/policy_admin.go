package admin

import (
	"errors"
	"strconv"

	"github.com/settle-next/internal/http/response"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetPolicies 获取佣金策略列表
func (h *Handler) GetPolicies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	targetID, _ := strconv.ParseUint(c.Query("target_id"), 10, 64)

	policies, total, err := h.PolicyService.ListPolicies(repository.PolicyListFilter{
		Page:       page,
		PageSize:   pageSize,
		Scope:      c.Query("scope"),
		TargetID:   uint(targetID),
		PolicyType: c.Query("policy_type"),
		ActiveOnly: c.Query("active_only") == "true",
	})
	if err != nil {
		respondError(c, response.CodeInternal, "策略查询失败", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, policies, pagination)
}

// GetPolicy 获取佣金策略详情
func (h *Handler) GetPolicy(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	policy, err := h.PolicyService.GetPolicy(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrPolicyNotFound) {
			respondError(c, response.CodeNotFound, "策略不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "策略查询失败", err)
		return
	}

	response.Success(c, policy)
}

// CreatePolicy 创建佣金策略
func (h *Handler) CreatePolicy(c *gin.Context) {
	var req service.PolicyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	policy, err := h.PolicyService.CreatePolicy(req)
	if err != nil {
		if errors.Is(err, service.ErrPolicyInvalid) {
			respondError(c, response.CodeBadRequest, "策略参数无效", nil)
			return
		}
		respondError(c, response.CodeInternal, "策略创建失败", err)
		return
	}

	response.Success(c, policy)
}

// UpdatePolicy 更新佣金策略
func (h *Handler) UpdatePolicy(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	var req service.PolicyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	policy, err := h.PolicyService.UpdatePolicy(uint(id), req)
	if err != nil {
		if errors.Is(err, service.ErrPolicyNotFound) {
			respondError(c, response.CodeNotFound, "策略不存在", nil)
			return
		}
		if errors.Is(err, service.ErrPolicyInvalid) {
			respondError(c, response.CodeBadRequest, "策略参数无效", nil)
			return
		}
		respondError(c, response.CodeInternal, "策略更新失败", err)
		return
	}

	response.Success(c, policy)
}

// DeletePolicy 删除佣金策略（软删除）
func (h *Handler) DeletePolicy(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "请求参数错误", nil)
		return
	}

	if err := h.PolicyService.DeletePolicy(uint(id)); err != nil {
		if errors.Is(err, service.ErrPolicyNotFound) {
			respondError(c, response.CodeNotFound, "策略不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "策略删除失败", err)
		return
	}

	response.Success(c, nil)
}
