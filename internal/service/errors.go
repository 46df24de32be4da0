package service

import "errors"

// 业务错误定义，供 HTTP 层映射为响应码
var (
	ErrNotFound           = errors.New("记录不存在")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidPassword    = errors.New("原密码错误")
	ErrWeakPassword       = errors.New("密码强度不足")

	ErrPartyTypeInvalid    = errors.New("参与方类型无效")
	ErrPolicyInvalid       = errors.New("佣金策略参数无效")
	ErrPolicyNotFound      = errors.New("佣金策略不存在")
	ErrPeriodInvalid       = errors.New("结算周期参数无效")
	ErrAdjustReasonInvalid = errors.New("调整原因无效")

	ErrTransactionNotFound      = errors.New("佣金流水不存在")
	ErrTransactionNotAdjustable = errors.New("佣金流水当前状态不可调整")

	ErrBatchNotFound      = errors.New("结算批次不存在")
	ErrBatchStatusInvalid = errors.New("结算批次当前状态不允许该操作")
	ErrStaleRecalculation = errors.New("结算批次已确认或已打款，禁止重算")
	ErrPaymentMismatch    = errors.New("打款金额与应付金额不一致")
	ErrInvariantViolation = errors.New("结算批次金额校验失败")
)
