package service

import (
	"strings"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PolicyService 佣金策略服务
// 解析优先级：商品级 > 卖家级 > 全局级 > 配置默认比例。
type PolicyService struct {
	cfg        *config.Config
	policyRepo repository.PolicyRepository
}

// NewPolicyService 创建佣金策略服务
func NewPolicyService(cfg *config.Config, policyRepo repository.PolicyRepository) *PolicyService {
	return &PolicyService{
		cfg:        cfg,
		policyRepo: policyRepo,
	}
}

// PolicyInput 创建/更新策略入参
type PolicyInput struct {
	Scope      string          `json:"scope" binding:"required"`
	TargetID   uint            `json:"target_id"`
	PolicyType string          `json:"policy_type" binding:"required"`
	Value      decimal.Decimal `json:"value"`
	IsActive   *bool           `json:"is_active"`
	Note       string          `json:"note"`
}

func validatePolicyInput(input PolicyInput) error {
	scope := strings.TrimSpace(input.Scope)
	switch scope {
	case constants.PolicyScopeProduct, constants.PolicyScopeSeller:
		if input.TargetID == 0 {
			return ErrPolicyInvalid
		}
	case constants.PolicyScopeGlobal:
		if input.TargetID != 0 {
			return ErrPolicyInvalid
		}
	default:
		return ErrPolicyInvalid
	}

	switch strings.TrimSpace(input.PolicyType) {
	case constants.PolicyTypeRate:
		if input.Value.IsNegative() || input.Value.GreaterThan(decimal.NewFromInt(100)) {
			return ErrPolicyInvalid
		}
	case constants.PolicyTypeFixed:
		if input.Value.IsNegative() {
			return ErrPolicyInvalid
		}
	default:
		return ErrPolicyInvalid
	}
	return nil
}

// CreatePolicy 创建策略
func (s *PolicyService) CreatePolicy(input PolicyInput) (*models.CommissionPolicy, error) {
	if err := validatePolicyInput(input); err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	policy := &models.CommissionPolicy{
		Scope:      strings.TrimSpace(input.Scope),
		TargetID:   input.TargetID,
		PolicyType: strings.TrimSpace(input.PolicyType),
		Value:      models.NewMoneyFromDecimal(input.Value),
		IsActive:   active,
		Note:       strings.TrimSpace(input.Note),
	}
	// 同一 (scope, target_id) 只保留一条生效策略，新策略生效时先停用旧策略
	err := s.policyRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.policyRepo.WithTx(tx)
		if policy.IsActive {
			if err := repo.DeactivateActive(policy.Scope, policy.TargetID, 0); err != nil {
				return err
			}
		}
		return repo.Create(policy)
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// UpdatePolicy 更新策略
func (s *PolicyService) UpdatePolicy(id uint, input PolicyInput) (*models.CommissionPolicy, error) {
	policy, err := s.policyRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, ErrPolicyNotFound
	}
	if err := validatePolicyInput(input); err != nil {
		return nil, err
	}

	policy.Scope = strings.TrimSpace(input.Scope)
	policy.TargetID = input.TargetID
	policy.PolicyType = strings.TrimSpace(input.PolicyType)
	policy.Value = models.NewMoneyFromDecimal(input.Value)
	policy.Note = strings.TrimSpace(input.Note)
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}
	err = s.policyRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.policyRepo.WithTx(tx)
		if policy.IsActive {
			if err := repo.DeactivateActive(policy.Scope, policy.TargetID, policy.ID); err != nil {
				return err
			}
		}
		return repo.Update(policy)
	})
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// DeletePolicy 删除策略
func (s *PolicyService) DeletePolicy(id uint) error {
	policy, err := s.policyRepo.GetByID(id)
	if err != nil {
		return err
	}
	if policy == nil {
		return ErrPolicyNotFound
	}
	return s.policyRepo.Delete(id)
}

// GetPolicy 查询策略
func (s *PolicyService) GetPolicy(id uint) (*models.CommissionPolicy, error) {
	policy, err := s.policyRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, ErrPolicyNotFound
	}
	return policy, nil
}

// ListPolicies 查询策略列表
func (s *PolicyService) ListPolicies(filter repository.PolicyListFilter) ([]models.CommissionPolicy, int64, error) {
	return s.policyRepo.List(filter)
}

// ResolvePolicy 按优先级解析生效策略
// 依次命中商品级、卖家级、全局级，均未配置时回落到配置默认比例。
func (s *PolicyService) ResolvePolicy(productID, sellerID uint) (*models.CommissionPolicy, error) {
	if productID != 0 {
		policy, err := s.policyRepo.GetActive(constants.PolicyScopeProduct, productID)
		if err != nil {
			return nil, err
		}
		if policy != nil {
			return policy, nil
		}
	}
	if sellerID != 0 {
		policy, err := s.policyRepo.GetActive(constants.PolicyScopeSeller, sellerID)
		if err != nil {
			return nil, err
		}
		if policy != nil {
			return policy, nil
		}
	}
	policy, err := s.policyRepo.GetActive(constants.PolicyScopeGlobal, 0)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		return policy, nil
	}
	return s.defaultPolicy(), nil
}

// defaultPolicy 返回配置兜底的全局比例策略
func (s *PolicyService) defaultPolicy() *models.CommissionPolicy {
	rate := decimal.NewFromFloat(s.cfg.Settlement.DefaultCommissionRate)
	return &models.CommissionPolicy{
		Scope:      constants.PolicyScopeGlobal,
		PolicyType: constants.PolicyTypeRate,
		Value:      models.NewMoneyFromDecimal(rate),
		IsActive:   true,
	}
}
