package repository

import (
	"errors"
	"strings"

	"github.com/settle-next/internal/models"

	"gorm.io/gorm"
)

// PolicyRepository 佣金策略数据访问接口
type PolicyRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PolicyRepository

	GetByID(id uint) (*models.CommissionPolicy, error)
	GetActive(scope string, targetID uint) (*models.CommissionPolicy, error)
	Create(policy *models.CommissionPolicy) error
	Update(policy *models.CommissionPolicy) error
	DeactivateActive(scope string, targetID uint, exceptID uint) error
	Delete(id uint) error
	List(filter PolicyListFilter) ([]models.CommissionPolicy, int64, error)
}

// GormPolicyRepository GORM 佣金策略仓储
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository 创建佣金策略仓储
func NewPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPolicyRepository) WithTx(tx *gorm.DB) PolicyRepository {
	if tx == nil {
		return r
	}
	return &GormPolicyRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPolicyRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取策略
func (r *GormPolicyRepository) GetByID(id uint) (*models.CommissionPolicy, error) {
	if id == 0 {
		return nil, nil
	}
	var policy models.CommissionPolicy
	if err := r.db.First(&policy, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

// GetActive 查询指定作用域下生效的策略，同作用域多条时取最新一条
func (r *GormPolicyRepository) GetActive(scope string, targetID uint) (*models.CommissionPolicy, error) {
	normalized := strings.TrimSpace(scope)
	if normalized == "" {
		return nil, nil
	}
	var policy models.CommissionPolicy
	err := r.db.Where("scope = ? AND target_id = ? AND is_active = ?", normalized, targetID, true).
		Order("id DESC").
		First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

// Create 创建策略
func (r *GormPolicyRepository) Create(policy *models.CommissionPolicy) error {
	return r.db.Create(policy).Error
}

// Update 更新策略
func (r *GormPolicyRepository) Update(policy *models.CommissionPolicy) error {
	return r.db.Save(policy).Error
}

// DeactivateActive 停用指定作用域下除 exceptID 外的生效策略
// 同一 (scope, target_id) 只允许一条生效策略，新策略生效前先停用旧策略。
func (r *GormPolicyRepository) DeactivateActive(scope string, targetID uint, exceptID uint) error {
	query := r.db.Model(&models.CommissionPolicy{}).
		Where("scope = ? AND target_id = ? AND is_active = ?", strings.TrimSpace(scope), targetID, true)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	return query.Update("is_active", false).Error
}

// Delete 删除策略（软删除）
func (r *GormPolicyRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.CommissionPolicy{}, id).Error
}

// List 查询策略列表
func (r *GormPolicyRepository) List(filter PolicyListFilter) ([]models.CommissionPolicy, int64, error) {
	query := r.db.Model(&models.CommissionPolicy{})
	if scope := strings.TrimSpace(filter.Scope); scope != "" {
		query = query.Where("scope = ?", scope)
	}
	if filter.TargetID != 0 {
		query = query.Where("target_id = ?", filter.TargetID)
	}
	if policyType := strings.TrimSpace(filter.PolicyType); policyType != "" {
		query = query.Where("policy_type = ?", policyType)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionPolicy
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
