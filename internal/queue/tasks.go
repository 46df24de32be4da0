package queue

import (
	"encoding/json"
	"time"

	"github.com/settle-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionRecord 佣金入账任务
	TaskCommissionRecord = constants.TaskCommissionRecord
	// TaskSettlementBuild 单参与方结算批次构建任务
	TaskSettlementBuild = constants.TaskSettlementBuild
	// TaskSettlementBuildAll 全量结算批次构建任务
	TaskSettlementBuildAll = constants.TaskSettlementBuildAll
	// TaskSettlementPayoutRequest 结算打款发起任务
	TaskSettlementPayoutRequest = constants.TaskSettlementPayoutRequest
	// TaskSettlementPartnerWebhook 合作方结算通知任务
	TaskSettlementPartnerWebhook = constants.TaskSettlementPartnerWebhook
)

// CommissionRecordPayload 佣金入账任务载荷
type CommissionRecordPayload struct {
	OrderItemID uint      `json:"order_item_id"`
	OrderNo     string    `json:"order_no"`
	ProductID   uint      `json:"product_id"`
	SellerID    uint      `json:"seller_id"`
	PartyType   string    `json:"party_type"`
	PartyID     uint      `json:"party_id"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Currency    string    `json:"currency"`
	CompletedAt time.Time `json:"completed_at"`
}

// SettlementBuildPayload 单参与方批次构建任务载荷
type SettlementBuildPayload struct {
	PartyType string `json:"party_type"`
	PartyID   uint   `json:"party_id"`
	PeriodKey string `json:"period_key"`
}

// SettlementBuildAllPayload 全量批次构建任务载荷
type SettlementBuildAllPayload struct {
	PeriodKey string `json:"period_key"`
}

// SettlementPayoutRequestPayload 打款发起任务载荷
type SettlementPayoutRequestPayload struct {
	BatchID uint `json:"batch_id"`
}

// SettlementPartnerWebhookPayload 合作方通知任务载荷
type SettlementPartnerWebhookPayload struct {
	BatchID uint   `json:"batch_id"`
	Event   string `json:"event"`
}

// NewCommissionRecordTask 创建佣金入账任务
func NewCommissionRecordTask(payload CommissionRecordPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionRecord, body), nil
}

// NewSettlementBuildTask 创建单参与方批次构建任务
func NewSettlementBuildTask(payload SettlementBuildPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementBuild, body), nil
}

// NewSettlementBuildAllTask 创建全量批次构建任务
func NewSettlementBuildAllTask(payload SettlementBuildAllPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementBuildAll, body), nil
}

// NewSettlementPayoutRequestTask 创建打款发起任务
func NewSettlementPayoutRequestTask(payload SettlementPayoutRequestPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementPayoutRequest, body), nil
}

// NewSettlementPartnerWebhookTask 创建合作方通知任务
func NewSettlementPartnerWebhookTask(payload SettlementPartnerWebhookPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementPartnerWebhook, body), nil
}
