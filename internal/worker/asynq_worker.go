package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/provider"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionRecord, c.handleCommissionRecord)
	mux.HandleFunc(queue.TaskSettlementBuild, c.handleSettlementBuild)
	mux.HandleFunc(queue.TaskSettlementBuildAll, c.handleSettlementBuildAll)
	mux.HandleFunc(queue.TaskSettlementPayoutRequest, c.handleSettlementPayoutRequest)
	mux.HandleFunc(queue.TaskSettlementPartnerWebhook, c.handleSettlementPartnerWebhook)
}

func (c *Consumer) handleCommissionRecord(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_record_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionRecordPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_record_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderItemID == 0 || payload.PartyID == 0 {
		logger.Debugw("worker_commission_record_skip_invalid_payload",
			"order_item_id", payload.OrderItemID,
			"party_id", payload.PartyID,
		)
		return nil
	}

	unitPrice, err := decimal.NewFromString(payload.UnitPrice)
	if err != nil {
		logger.Warnw("worker_commission_record_price_invalid", "unit_price", payload.UnitPrice, "error", err)
		return nil
	}
	txn, created, err := c.CommissionService.RecordCommission(service.RecordCommissionInput{
		OrderItemID: payload.OrderItemID,
		OrderNo:     payload.OrderNo,
		ProductID:   payload.ProductID,
		SellerID:    payload.SellerID,
		PartyType:   payload.PartyType,
		PartyID:     payload.PartyID,
		Quantity:    payload.Quantity,
		UnitPrice:   models.NewMoneyFromDecimal(unitPrice),
		Currency:    payload.Currency,
		CompletedAt: payload.CompletedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPartyTypeInvalid), errors.Is(err, service.ErrPolicyInvalid):
			logger.Warnw("worker_commission_record_skip_invalid_input",
				"order_item_id", payload.OrderItemID,
				"party_type", payload.PartyType,
				"error", err,
			)
			return nil
		default:
			logger.Warnw("worker_commission_record_failed", "order_item_id", payload.OrderItemID, "error", err)
			return err
		}
	}
	if !created {
		logger.Debugw("worker_commission_record_duplicate", "transaction_id", txn.ID)
	}
	return nil
}

func (c *Consumer) handleSettlementBuild(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_build_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementBuildPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_build_unmarshal_failed", "error", err)
		return err
	}
	if payload.PartyID == 0 || payload.PeriodKey == "" {
		logger.Debugw("worker_settlement_build_skip_invalid_payload",
			"party_id", payload.PartyID,
			"period_key", payload.PeriodKey,
		)
		return nil
	}
	_, err := c.SettlementService.BuildBatch(payload.PartyType, payload.PartyID, payload.PeriodKey, constants.ActorSystem)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPartyTypeInvalid), errors.Is(err, service.ErrPeriodInvalid):
			logger.Warnw("worker_settlement_build_skip_invalid_input",
				"party_type", payload.PartyType,
				"period_key", payload.PeriodKey,
				"error", err,
			)
			return nil
		case errors.Is(err, service.ErrStaleRecalculation):
			// 批次已确认或已打款，无需重算
			logger.Debugw("worker_settlement_build_skip_finalized",
				"party_type", payload.PartyType,
				"party_id", payload.PartyID,
				"period_key", payload.PeriodKey,
			)
			return nil
		default:
			logger.Warnw("worker_settlement_build_failed",
				"party_type", payload.PartyType,
				"party_id", payload.PartyID,
				"period_key", payload.PeriodKey,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleSettlementBuildAll(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_build_all_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementBuildAllPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_build_all_unmarshal_failed", "error", err)
		return err
	}
	// 定时任务不带周期时结算上一个自然月
	periodKey := payload.PeriodKey
	if periodKey == "" {
		periodKey = service.PreviousPeriodWindow(time.Now()).Key
	}
	count, err := c.SettlementService.BuildAllBatches(periodKey, constants.ActorSystem)
	if err != nil {
		if errors.Is(err, service.ErrPeriodInvalid) {
			logger.Warnw("worker_settlement_build_all_skip_invalid_period", "period_key", periodKey)
			return nil
		}
		logger.Warnw("worker_settlement_build_all_failed", "period_key", periodKey, "error", err)
		return err
	}
	logger.Infow("worker_settlement_build_all_done", "period_key", periodKey, "triggered", count)
	return nil
}

func (c *Consumer) handleSettlementPayoutRequest(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_payout_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementPayoutRequestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_payout_unmarshal_failed", "error", err)
		return err
	}
	if payload.BatchID == 0 {
		logger.Debugw("worker_settlement_payout_skip_invalid_payload", "batch_id", payload.BatchID)
		return nil
	}
	if err := c.SettlementService.RequestPayout(ctx, payload.BatchID); err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			logger.Debugw("worker_settlement_payout_skip_batch_not_found", "batch_id", payload.BatchID)
			return nil
		case errors.Is(err, service.ErrBatchStatusInvalid):
			// 批次已离开 confirmed 状态，重复投递或已处理
			logger.Debugw("worker_settlement_payout_skip_invalid_status", "batch_id", payload.BatchID)
			return nil
		default:
			logger.Warnw("worker_settlement_payout_failed", "batch_id", payload.BatchID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleSettlementPartnerWebhook(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_partner_webhook_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementPartnerWebhookPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_partner_webhook_unmarshal_failed", "error", err)
		return err
	}
	if payload.BatchID == 0 {
		logger.Debugw("worker_partner_webhook_skip_invalid_payload", "batch_id", payload.BatchID)
		return nil
	}
	if c.WebhookService == nil || !c.WebhookService.Enabled() {
		logger.Debugw("worker_partner_webhook_skip_disabled", "batch_id", payload.BatchID)
		return nil
	}
	if err := c.WebhookService.NotifyPartner(ctx, payload.BatchID, payload.Event); err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			logger.Debugw("worker_partner_webhook_skip_batch_not_found", "batch_id", payload.BatchID)
			return nil
		}
		logger.Warnw("worker_partner_webhook_failed", "batch_id", payload.BatchID, "event", payload.Event, "error", err)
		return err
	}
	return nil
}
