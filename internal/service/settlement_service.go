package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/payment/payout"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/repository"
	"github.com/shopspring/decimal"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementService 结算服务
// 负责批次聚合构建、状态机流转、打款发起与回调处理。
// 所有状态迁移与明细变更在同一事务内落库，日志与变更一起提交。
type SettlementService struct {
	cfg       *config.Config
	batchRepo repository.SettlementBatchRepository
	txnRepo   repository.CommissionTransactionRepository
	logRepo   repository.SettlementLogRepository
	queue     *queue.Client
	payoutCfg *payout.Config
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	cfg *config.Config,
	batchRepo repository.SettlementBatchRepository,
	txnRepo repository.CommissionTransactionRepository,
	logRepo repository.SettlementLogRepository,
	queueClient *queue.Client,
) *SettlementService {
	svc := &SettlementService{
		cfg:       cfg,
		batchRepo: batchRepo,
		txnRepo:   txnRepo,
		logRepo:   logRepo,
		queue:     queueClient,
	}
	if cfg != nil && strings.TrimSpace(cfg.Payout.GatewayURL) != "" {
		payoutCfg := &payout.Config{
			GatewayURL: cfg.Payout.GatewayURL,
			AuthToken:  cfg.Payout.AuthToken,
			NotifyURL:  cfg.Payout.NotifyURL,
		}
		payoutCfg.Normalize()
		svc.payoutCfg = payoutCfg
	}
	return svc
}

// canTransition 状态机合法迁移判定
// draft → calculated → confirmed → paid 为主路径；
// cancelled 仅允许从 draft/calculated 进入，failed 可从任意非终态进入。
func canTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch to {
	case constants.SettlementStatusCalculated:
		return from == constants.SettlementStatusDraft ||
			from == constants.SettlementStatusCancelled ||
			from == constants.SettlementStatusFailed
	case constants.SettlementStatusConfirmed:
		return from == constants.SettlementStatusCalculated
	case constants.SettlementStatusPaid:
		return from == constants.SettlementStatusConfirmed
	case constants.SettlementStatusCancelled:
		return from == constants.SettlementStatusDraft || from == constants.SettlementStatusCalculated
	case constants.SettlementStatusFailed:
		return from != constants.SettlementStatusPaid && from != constants.SettlementStatusCancelled
	}
	return false
}

// appendLog 在事务内追加结算日志
func (s *SettlementService) appendLog(tx *gorm.DB, batchID uint, action, fromStatus, toStatus, actor string, detail models.JSON) error {
	return s.logRepo.WithTx(tx).Create(&models.SettlementLog{
		BatchID:    batchID,
		Action:     action,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Actor:      actor,
		Detail:     detail,
	})
}

// BuildBatch 聚合构建指定参与方在指定周期的结算批次
// 可重复执行：已存在的 draft/calculated 批次会释放旧认领后整体重算并递增版本号，
// cancelled/failed 批次会被重新打开；confirmed/paid 批次禁止重算。
func (s *SettlementService) BuildBatch(partyType string, partyID uint, periodKey, actor string) (*models.SettlementBatch, error) {
	normalized := strings.TrimSpace(partyType)
	if !validPartyType(normalized) {
		return nil, ErrPartyTypeInvalid
	}
	if partyID == 0 {
		return nil, ErrPolicyInvalid
	}
	window, err := ParsePeriodKey(periodKey)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		actor = constants.ActorSystem
	}

	var batch *models.SettlementBatch
	buildTx := func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		txnRepo := s.txnRepo.WithTx(tx)

		existing, err := batchRepo.GetByPartyPeriodForUpdate(normalized, partyID, window.Start, window.End)
		if err != nil {
			return err
		}

		now := time.Now()
		if existing != nil {
			if existing.Status == constants.SettlementStatusConfirmed || existing.Status == constants.SettlementStatusPaid {
				return ErrStaleRecalculation
			}
			// 释放上一版本认领的流水
			items, err := batchRepo.ListItemsByBatch(existing.ID)
			if err != nil {
				return err
			}
			if len(items) > 0 {
				ids := make([]uint, 0, len(items))
				for _, item := range items {
					ids = append(ids, item.TransactionID)
				}
				if _, err := txnRepo.BatchUpdate(ids, map[string]interface{}{
					"status":     constants.CommissionTxnStatusPending,
					"settled_at": nil,
					"updated_at": now,
				}); err != nil {
					return err
				}
			}
			if err := batchRepo.DeleteItemsByBatch(existing.ID); err != nil {
				return err
			}
			batch = existing
		} else {
			batch = &models.SettlementBatch{
				BatchNo:     buildBatchNo(),
				PartyType:   normalized,
				PartyID:     partyID,
				PeriodStart: window.Start,
				PeriodEnd:   window.End,
				PeriodKey:   window.Key,
				Status:      constants.SettlementStatusDraft,
				Currency:    s.cfg.Settlement.Currency,
			}
			if err := batchRepo.Create(batch); err != nil {
				return err
			}
			if err := s.appendLog(tx, batch.ID, constants.SettlementActionCreated, "", constants.SettlementStatusDraft, actor, models.JSON{
				"batch_no":   batch.BatchNo,
				"period_key": window.Key,
			}); err != nil {
				return err
			}
		}

		// 认领周期窗口内待结算流水
		txns, err := txnRepo.ListPendingForUpdate(normalized, partyID, window.Start, window.End)
		if err != nil {
			return err
		}

		totalGross := decimal.Zero
		totalCommission := decimal.Zero
		totalNet := decimal.Zero
		adjustment := decimal.Zero
		items := make([]models.SettlementItem, 0, len(txns))
		ids := make([]uint, 0, len(txns))
		for _, txn := range txns {
			totalGross = totalGross.Add(txn.GrossAmount.Decimal)
			totalCommission = totalCommission.Add(txn.CommissionAmount.Decimal)
			totalNet = totalNet.Add(txn.NetAmount.Decimal)
			if txn.OriginalTransactionID != nil {
				adjustment = adjustment.Add(txn.NetAmount.Decimal)
			}
			items = append(items, models.SettlementItem{
				BatchID:          batch.ID,
				TransactionID:    txn.ID,
				OrderItemID:      txn.OrderItemID,
				EntryType:        txn.EntryType,
				GrossAmount:      txn.GrossAmount,
				CommissionAmount: txn.CommissionAmount,
				NetAmount:        txn.NetAmount,
			})
			ids = append(ids, txn.ID)
		}
		if err := batchRepo.CreateItems(items); err != nil {
			return err
		}
		if len(ids) > 0 {
			if _, err := txnRepo.BatchUpdate(ids, map[string]interface{}{
				"status":     constants.CommissionTxnStatusSettled,
				"settled_at": now,
				"updated_at": now,
			}); err != nil {
				return err
			}
		}

		// 独立复核明细净额与批次合计
		itemNet, err := batchRepo.SumItemNetByBatch(batch.ID)
		if err != nil {
			return err
		}
		if !itemNet.Equal(totalNet.Round(2)) {
			return ErrInvariantViolation
		}

		fromStatus := batch.Status
		batch.Status = constants.SettlementStatusCalculated
		batch.ItemCount = len(items)
		batch.TotalGross = models.NewMoneyFromDecimal(totalGross)
		batch.TotalCommission = models.NewMoneyFromDecimal(totalCommission)
		batch.TotalNet = models.NewMoneyFromDecimal(totalNet)
		batch.AdjustmentAmount = models.NewMoneyFromDecimal(adjustment)
		batch.PayableAmount = models.NewMoneyFromDecimal(totalNet)
		batch.Version++
		batch.FailureReason = ""
		batch.CalculatedAt = &now
		if err := batchRepo.Update(batch); err != nil {
			return err
		}

		return s.appendLog(tx, batch.ID, constants.SettlementActionCalculated, fromStatus, batch.Status, actor, models.JSON{
			"version":    batch.Version,
			"item_count": batch.ItemCount,
			"total_net":  batch.TotalNet.String(),
		})
	}

	err = s.batchRepo.Transaction(buildTx)
	// 并发构建同一 (参与方, 周期) 时，后插入者命中批次唯一索引，重试一次走重算路径
	if err != nil && isUniqueViolation(err) {
		err = s.batchRepo.Transaction(buildTx)
	}
	if err != nil {
		if err == ErrInvariantViolation {
			s.recordInvariantViolation(normalized, partyID, window, actor)
		}
		return nil, err
	}

	logger.Infow("settlement_batch_built",
		"batch_id", batch.ID,
		"batch_no", batch.BatchNo,
		"party_type", batch.PartyType,
		"party_id", batch.PartyID,
		"period_key", batch.PeriodKey,
		"version", batch.Version,
		"item_count", batch.ItemCount,
		"payable_amount", batch.PayableAmount.String(),
	)
	return batch, nil
}

// recordInvariantViolation 金额复核失败后落失败批次与日志
// 构建事务已整体回滚，这里单独开事务记录失败状态。
func (s *SettlementService) recordInvariantViolation(partyType string, partyID uint, window PeriodWindow, actor string) {
	err := s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		batch, err := batchRepo.GetByPartyPeriodForUpdate(partyType, partyID, window.Start, window.End)
		if err != nil {
			return err
		}
		if batch == nil {
			batch = &models.SettlementBatch{
				BatchNo:     buildBatchNo(),
				PartyType:   partyType,
				PartyID:     partyID,
				PeriodStart: window.Start,
				PeriodEnd:   window.End,
				PeriodKey:   window.Key,
				Currency:    s.cfg.Settlement.Currency,
			}
		}
		fromStatus := batch.Status
		batch.Status = constants.SettlementStatusFailed
		batch.FailureReason = ErrInvariantViolation.Error()
		if batch.ID == 0 {
			if err := batchRepo.Create(batch); err != nil {
				return err
			}
		} else if err := batchRepo.Update(batch); err != nil {
			return err
		}
		return s.appendLog(tx, batch.ID, constants.SettlementActionInvariantBroken, fromStatus, batch.Status, actor, models.JSON{
			"period_key": window.Key,
		})
	})
	if err != nil {
		logger.Errorw("settlement_invariant_record_failed",
			"party_type", partyType,
			"party_id", partyID,
			"period_key", window.Key,
			"error", err,
		)
	}
}

// BuildAllBatches 为周期内所有存在待结算流水的参与方构建批次
// 队列可用时逐个投递构建任务，否则同步构建。返回触发的参与方数量。
func (s *SettlementService) BuildAllBatches(periodKey, actor string) (int, error) {
	window, err := ParsePeriodKey(periodKey)
	if err != nil {
		return 0, err
	}
	parties, err := s.txnRepo.ListPartiesWithPending(window.Start, window.End)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, party := range parties {
		if s.queue.Enabled() {
			if err := s.queue.EnqueueSettlementBuild(queue.SettlementBuildPayload{
				PartyType: party.PartyType,
				PartyID:   party.PartyID,
				PeriodKey: window.Key,
			}); err != nil {
				logger.Errorw("settlement_build_enqueue_failed",
					"party_type", party.PartyType,
					"party_id", party.PartyID,
					"period_key", window.Key,
					"error", err,
				)
				continue
			}
		} else {
			if _, err := s.BuildBatch(party.PartyType, party.PartyID, window.Key, actor); err != nil {
				logger.Errorw("settlement_build_failed",
					"party_type", party.PartyType,
					"party_id", party.PartyID,
					"period_key", window.Key,
					"error", err,
				)
				continue
			}
		}
		count++
	}
	return count, nil
}

// ConfirmBatch 确认结算批次
// 仅允许 calculated → confirmed，确认后异步发起打款与合作方通知。
func (s *SettlementService) ConfirmBatch(batchID uint, actor string) (*models.SettlementBatch, error) {
	var batch *models.SettlementBatch
	err := s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		var err error
		batch, err = batchRepo.GetByIDForUpdate(batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return ErrBatchNotFound
		}
		if !canTransition(batch.Status, constants.SettlementStatusConfirmed) {
			return ErrBatchStatusInvalid
		}

		fromStatus := batch.Status
		now := time.Now()
		batch.Status = constants.SettlementStatusConfirmed
		batch.ConfirmedAt = &now
		if err := batchRepo.Update(batch); err != nil {
			return err
		}
		return s.appendLog(tx, batch.ID, constants.SettlementActionConfirmed, fromStatus, batch.Status, actor, models.JSON{
			"payable_amount": batch.PayableAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.queue.Enabled() {
		if err := s.queue.EnqueueSettlementPayoutRequest(queue.SettlementPayoutRequestPayload{BatchID: batch.ID}); err != nil {
			logger.Errorw("settlement_payout_enqueue_failed", "batch_id", batch.ID, "error", err)
		}
		if err := s.queue.EnqueueSettlementPartnerWebhook(queue.SettlementPartnerWebhookPayload{
			BatchID: batch.ID,
			Event:   constants.SettlementActionConfirmed,
		}); err != nil {
			logger.Errorw("settlement_webhook_enqueue_failed", "batch_id", batch.ID, "error", err)
		}
	} else {
		// 队列不可用时同步发起打款，失败不回滚确认状态，可通过管理端重试
		if err := s.RequestPayout(context.Background(), batch.ID); err != nil {
			logger.Errorw("settlement_payout_request_failed", "batch_id", batch.ID, "error", err)
		}
	}

	logger.Infow("settlement_batch_confirmed", "batch_id", batch.ID, "batch_no", batch.BatchNo, "actor", actor)
	return batch, nil
}

// RequestPayout 向打款网关发起批次打款
// 批次必须处于 confirmed 状态；网关未配置时跳过并保留 confirmed 状态等待人工处理。
func (s *SettlementService) RequestPayout(ctx context.Context, batchID uint) error {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return ErrBatchNotFound
	}
	if batch.Status != constants.SettlementStatusConfirmed {
		return ErrBatchStatusInvalid
	}
	if s.payoutCfg == nil {
		logger.Warnw("settlement_payout_gateway_not_configured", "batch_id", batch.ID)
		return nil
	}

	result, err := payout.CreateTransfer(ctx, s.payoutCfg, payout.CreateInput{
		BatchNo:   batch.BatchNo,
		Amount:    batch.PayableAmount.String(),
		Currency:  batch.Currency,
		PartyType: batch.PartyType,
		PartyID:   batch.PartyID,
	})
	if err != nil {
		return err
	}

	return s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		locked, err := batchRepo.GetByIDForUpdate(batch.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != constants.SettlementStatusConfirmed {
			return nil
		}
		locked.PayoutTradeNo = result.TradeNo
		if err := batchRepo.Update(locked); err != nil {
			return err
		}
		return s.appendLog(tx, locked.ID, constants.SettlementActionPaymentInitiated, locked.Status, locked.Status, constants.ActorSystem, models.JSON{
			"trade_no": result.TradeNo,
			"amount":   locked.PayableAmount.String(),
		})
	})
}

// PayoutCallbackInput 打款回调入参（已验签）
type PayoutCallbackInput struct {
	BatchNo string
	TradeNo string
	Amount  decimal.Decimal
	Success bool
	Reason  string
}

// HandlePayoutCallback 处理打款网关回调
// 成功回调要求金额与应付金额完全一致，不一致时批次转 failed。重复回调幂等。
func (s *SettlementService) HandlePayoutCallback(input PayoutCallbackInput) error {
	batch, err := s.batchRepo.GetByBatchNo(input.BatchNo)
	if err != nil {
		return err
	}
	if batch == nil {
		return ErrBatchNotFound
	}

	mismatch := false
	err = s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		locked, err := batchRepo.GetByIDForUpdate(batch.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrBatchNotFound
		}
		// 重复回调；failed 批次应答成功终止网关重试，重新打款需先重算重新确认
		if locked.Status == constants.SettlementStatusPaid || locked.Status == constants.SettlementStatusFailed {
			return nil
		}
		if locked.Status != constants.SettlementStatusConfirmed {
			return ErrBatchStatusInvalid
		}

		now := time.Now()
		fromStatus := locked.Status
		if !input.Success {
			locked.Status = constants.SettlementStatusFailed
			locked.FailureReason = strings.TrimSpace(input.Reason)
			if locked.FailureReason == "" {
				locked.FailureReason = "payout gateway reported failure"
			}
			if err := batchRepo.Update(locked); err != nil {
				return err
			}
			return s.appendLog(tx, locked.ID, constants.SettlementActionPaymentFailed, fromStatus, locked.Status, constants.ActorGateway, models.JSON{
				"trade_no": input.TradeNo,
				"reason":   locked.FailureReason,
			})
		}

		// 金额不一致时批次转 failed，失败状态需要随事务提交
		if !input.Amount.Round(2).Equal(locked.PayableAmount.Decimal.Round(2)) {
			mismatch = true
			locked.Status = constants.SettlementStatusFailed
			locked.FailureReason = ErrPaymentMismatch.Error()
			if err := batchRepo.Update(locked); err != nil {
				return err
			}
			return s.appendLog(tx, locked.ID, constants.SettlementActionPaymentFailed, fromStatus, locked.Status, constants.ActorGateway, models.JSON{
				"trade_no":        input.TradeNo,
				"callback_amount": input.Amount.Round(2).StringFixed(2),
				"payable_amount":  locked.PayableAmount.String(),
			})
		}

		locked.Status = constants.SettlementStatusPaid
		locked.PayoutTradeNo = input.TradeNo
		locked.PaidAt = &now
		if err := batchRepo.Update(locked); err != nil {
			return err
		}
		return s.appendLog(tx, locked.ID, constants.SettlementActionPaymentCompleted, fromStatus, locked.Status, constants.ActorGateway, models.JSON{
			"trade_no": input.TradeNo,
			"amount":   locked.PayableAmount.String(),
		})
	})
	if err != nil {
		return err
	}
	if mismatch {
		return ErrPaymentMismatch
	}
	return nil
}

// CancelBatch 取消结算批次并释放已认领的流水
func (s *SettlementService) CancelBatch(batchID uint, actor, reason string) (*models.SettlementBatch, error) {
	var batch *models.SettlementBatch
	err := s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		txnRepo := s.txnRepo.WithTx(tx)

		var err error
		batch, err = batchRepo.GetByIDForUpdate(batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return ErrBatchNotFound
		}
		if !canTransition(batch.Status, constants.SettlementStatusCancelled) {
			return ErrBatchStatusInvalid
		}

		items, err := batchRepo.ListItemsByBatch(batch.ID)
		if err != nil {
			return err
		}
		now := time.Now()
		if len(items) > 0 {
			ids := make([]uint, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.TransactionID)
			}
			if _, err := txnRepo.BatchUpdate(ids, map[string]interface{}{
				"status":     constants.CommissionTxnStatusPending,
				"settled_at": nil,
				"updated_at": now,
			}); err != nil {
				return err
			}
		}
		if err := batchRepo.DeleteItemsByBatch(batch.ID); err != nil {
			return err
		}

		fromStatus := batch.Status
		batch.Status = constants.SettlementStatusCancelled
		batch.ItemCount = 0
		batch.TotalGross = models.NewMoneyFromDecimal(decimal.Zero)
		batch.TotalCommission = models.NewMoneyFromDecimal(decimal.Zero)
		batch.TotalNet = models.NewMoneyFromDecimal(decimal.Zero)
		batch.AdjustmentAmount = models.NewMoneyFromDecimal(decimal.Zero)
		batch.PayableAmount = models.NewMoneyFromDecimal(decimal.Zero)
		if err := batchRepo.Update(batch); err != nil {
			return err
		}
		return s.appendLog(tx, batch.ID, constants.SettlementActionCancelled, fromStatus, batch.Status, actor, models.JSON{
			"reason":         strings.TrimSpace(reason),
			"released_items": len(items),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("settlement_batch_cancelled", "batch_id", batch.ID, "batch_no", batch.BatchNo, "actor", actor)
	return batch, nil
}

// FailBatch 将批次标记为失败
func (s *SettlementService) FailBatch(batchID uint, actor, reason string) (*models.SettlementBatch, error) {
	var batch *models.SettlementBatch
	err := s.batchRepo.Transaction(func(tx *gorm.DB) error {
		batchRepo := s.batchRepo.WithTx(tx)
		var err error
		batch, err = batchRepo.GetByIDForUpdate(batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return ErrBatchNotFound
		}
		if !canTransition(batch.Status, constants.SettlementStatusFailed) {
			return ErrBatchStatusInvalid
		}

		fromStatus := batch.Status
		batch.Status = constants.SettlementStatusFailed
		batch.FailureReason = strings.TrimSpace(reason)
		if err := batchRepo.Update(batch); err != nil {
			return err
		}
		return s.appendLog(tx, batch.ID, constants.SettlementActionStatusChanged, fromStatus, batch.Status, actor, models.JSON{
			"reason": batch.FailureReason,
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch 查询批次
func (s *SettlementService) GetBatch(batchID uint) (*models.SettlementBatch, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return batch, nil
}

// GetBatchByNo 按批次号查询批次
func (s *SettlementService) GetBatchByNo(batchNo string) (*models.SettlementBatch, error) {
	batch, err := s.batchRepo.GetByBatchNo(batchNo)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return batch, nil
}

// ListBatches 查询批次列表
func (s *SettlementService) ListBatches(filter repository.SettlementBatchListFilter) ([]models.SettlementBatch, int64, error) {
	return s.batchRepo.List(filter)
}

// ListBatchItems 查询批次明细
func (s *SettlementService) ListBatchItems(batchID uint) ([]models.SettlementItem, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return s.batchRepo.ListItemsByBatch(batchID)
}

// ListBatchLogs 查询批次日志
func (s *SettlementService) ListBatchLogs(batchID uint) ([]models.SettlementLog, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return s.logRepo.ListByBatch(batchID)
}

// buildBatchNo 生成批次号
func buildBatchNo() string {
	return fmt.Sprintf("ST%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:24])
}
