package constants

// 结算参与方类型常量
const (
	PartyTypeSeller   = "seller"
	PartyTypeSupplier = "supplier"
	PartyTypePartner  = "partner"
	PartyTypePlatform = "platform"
)

// ValidPartyTypes 支持的参与方类型顺序
var ValidPartyTypes = []string{PartyTypeSeller, PartyTypeSupplier, PartyTypePartner, PartyTypePlatform}

// 佣金策略作用域常量
const (
	PolicyScopeProduct = "product"
	PolicyScopeSeller  = "seller"
	PolicyScopeGlobal  = "global"
)

// 佣金策略类型常量
const (
	PolicyTypeRate  = "rate"
	PolicyTypeFixed = "fixed"
)

// 佣金流水状态常量
const (
	CommissionTxnStatusPending  = "pending"
	CommissionTxnStatusSettled  = "settled"
	CommissionTxnStatusAdjusted = "adjusted"
)

// 佣金流水条目类型常量
const (
	CommissionEntryTypeOrder = "order"
)

// 调整原因常量
const (
	AdjustReasonRefund           = "refund"
	AdjustReasonCancellation     = "cancellation"
	AdjustReasonManualCorrection = "manual_correction"
)

// 结算批次状态常量
const (
	SettlementStatusDraft      = "draft"
	SettlementStatusCalculated = "calculated"
	SettlementStatusConfirmed  = "confirmed"
	SettlementStatusPaid       = "paid"
	SettlementStatusCancelled  = "cancelled"
	SettlementStatusFailed     = "failed"
)

// 结算流水动作常量
const (
	SettlementActionCreated          = "created"
	SettlementActionCalculated       = "calculation_executed"
	SettlementActionStatusChanged    = "status_changed"
	SettlementActionConfirmed        = "confirmed"
	SettlementActionAdjustmentAdded  = "adjustment_added"
	SettlementActionPaymentInitiated = "payment_initiated"
	SettlementActionPaymentCompleted = "payment_completed"
	SettlementActionPaymentFailed    = "payment_failed"
	SettlementActionCancelled        = "cancelled"
	SettlementActionInvariantBroken  = "invariant_violation"
)

// 系统操作者常量
const (
	ActorSystem  = "system"
	ActorGateway = "payout_gateway"
)

// 队列常量
const (
	QueueDefault                 = "default"
	TaskCommissionRecord         = "commission:record"
	TaskSettlementBuild          = "settlement:build"
	TaskSettlementBuildAll       = "settlement:build_all"
	TaskSettlementPayoutRequest  = "settlement:payout_request"
	TaskSettlementPartnerWebhook = "settlement:partner_webhook"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sn"
)

// 币种常量
const (
	SettlementCurrencyDefault = "CNY"
)

// 结算周期键格式（按月）
const (
	PeriodKeyLayout = "2006-01"
)
