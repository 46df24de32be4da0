package service

import (
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/models"
	"github.com/shopspring/decimal"
)

// CommissionBreakdown 单条订单项的分账结果
type CommissionBreakdown struct {
	GrossAmount      models.Money
	CommissionAmount models.Money
	NetAmount        models.Money
}

// CalculateCommission 按策略计算单条订单项的分账金额
// rate 型策略 value 为百分比（如 20.00 表示 20%），fixed 型为单件固定佣金。
// 佣金只在最终金额上做一次四舍五入，gross 与 net 始终满足 net = gross - commission。
func CalculateCommission(unitPrice models.Money, quantity int, policyType string, value decimal.Decimal) (CommissionBreakdown, error) {
	if quantity <= 0 {
		return CommissionBreakdown{}, ErrPolicyInvalid
	}
	gross := unitPrice.Decimal.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	var commission decimal.Decimal
	switch policyType {
	case constants.PolicyTypeRate:
		if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
			return CommissionBreakdown{}, ErrPolicyInvalid
		}
		commission = gross.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
	case constants.PolicyTypeFixed:
		if value.IsNegative() {
			return CommissionBreakdown{}, ErrPolicyInvalid
		}
		commission = value.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
		// 固定佣金不穿透总额
		if commission.GreaterThan(gross) {
			commission = gross
		}
	default:
		return CommissionBreakdown{}, ErrPolicyInvalid
	}

	return CommissionBreakdown{
		GrossAmount:      models.NewMoneyFromDecimal(gross),
		CommissionAmount: models.NewMoneyFromDecimal(commission),
		NetAmount:        models.NewMoneyFromDecimal(gross.Sub(commission)),
	}, nil
}

// ApplySnapshotToDelta 按原始流水的策略快照对带符号的总额变化量计算佣金变化量
// 用于退款等调整场景，保证调整与原始计费口径一致。
// originalCommission 为原始流水已计的佣金额，fixed 型策略的变化量沿用入账时的封顶口径：
// 反向调整不超过已计佣金，正向调整不超过新增总额，保证全额冲正后净头寸恰好归零。
func ApplySnapshotToDelta(snapshot models.JSON, originalCommission decimal.Decimal, grossDelta decimal.Decimal, quantityDelta int) (decimal.Decimal, error) {
	policyType, _ := snapshot["policy_type"].(string)
	rawValue, _ := snapshot["value"].(string)
	value, err := decimal.NewFromString(rawValue)
	if err != nil {
		return decimal.Zero, ErrPolicyInvalid
	}

	switch policyType {
	case constants.PolicyTypeRate:
		return grossDelta.Mul(value).Div(decimal.NewFromInt(100)).Round(2), nil
	case constants.PolicyTypeFixed:
		delta := value.Mul(decimal.NewFromInt(int64(quantityDelta))).Round(2)
		rounded := grossDelta.Round(2)
		if delta.IsPositive() && delta.GreaterThan(rounded) {
			delta = rounded
			if delta.IsNegative() {
				delta = decimal.Zero
			}
		}
		if delta.IsNegative() && delta.Neg().GreaterThan(originalCommission) {
			delta = originalCommission.Neg()
		}
		return delta, nil
	default:
		return decimal.Zero, ErrPolicyInvalid
	}
}

// BuildPolicySnapshot 生成写入佣金流水的策略快照
func BuildPolicySnapshot(policy *models.CommissionPolicy) models.JSON {
	if policy == nil {
		return nil
	}
	return models.JSON{
		"policy_id":   policy.ID,
		"scope":       policy.Scope,
		"policy_type": policy.PolicyType,
		"value":       policy.Value.Decimal.String(),
	}
}
