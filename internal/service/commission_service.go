package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 佣金流水服务
// 负责订单事件入账与调整条目追加，入账以数据库唯一索引保证幂等。
type CommissionService struct {
	cfg       *config.Config
	txnRepo   repository.CommissionTransactionRepository
	batchRepo repository.SettlementBatchRepository
	policySvc *PolicyService
}

// NewCommissionService 创建佣金流水服务
func NewCommissionService(cfg *config.Config, txnRepo repository.CommissionTransactionRepository, batchRepo repository.SettlementBatchRepository, policySvc *PolicyService) *CommissionService {
	return &CommissionService{
		cfg:       cfg,
		txnRepo:   txnRepo,
		batchRepo: batchRepo,
		policySvc: policySvc,
	}
}

// RecordCommissionInput 订单项入账入参
type RecordCommissionInput struct {
	OrderItemID uint         `json:"order_item_id" binding:"required"`
	OrderNo     string       `json:"order_no" binding:"required"`
	ProductID   uint         `json:"product_id"`
	SellerID    uint         `json:"seller_id"`
	PartyType   string       `json:"party_type" binding:"required"`
	PartyID     uint         `json:"party_id" binding:"required"`
	Quantity    int          `json:"quantity" binding:"required"`
	UnitPrice   models.Money `json:"unit_price"`
	Currency    string       `json:"currency"`
	CompletedAt time.Time    `json:"completed_at"`
}

func validPartyType(partyType string) bool {
	for _, t := range constants.ValidPartyTypes {
		if t == partyType {
			return true
		}
	}
	return false
}

// RecordCommission 记录一条订单项的佣金流水
// 同一 (order_item_id, party_type, party_id) 重复投递时返回已存在的流水，不重复入账。
func (s *CommissionService) RecordCommission(input RecordCommissionInput) (*models.CommissionTransaction, bool, error) {
	partyType := strings.TrimSpace(input.PartyType)
	if !validPartyType(partyType) {
		return nil, false, ErrPartyTypeInvalid
	}
	if input.OrderItemID == 0 || input.PartyID == 0 || input.Quantity <= 0 {
		return nil, false, ErrPolicyInvalid
	}

	// 重复投递直接命中已有流水
	existing, err := s.txnRepo.GetByUniqueKey(input.OrderItemID, partyType, input.PartyID, constants.CommissionEntryTypeOrder)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	policy, err := s.policySvc.ResolvePolicy(input.ProductID, input.SellerID)
	if err != nil {
		return nil, false, err
	}
	breakdown, err := CalculateCommission(input.UnitPrice, input.Quantity, policy.PolicyType, policy.Value.Decimal)
	if err != nil {
		return nil, false, err
	}

	completedAt := input.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	// 迟到流水：所属周期的批次已确认或已打款时滚入当前开放周期，
	// 否则该流水会永远停留在 pending 且无法被任何批次认领
	window := PeriodWindowOf(completedAt)
	closed, err := s.periodClosed(partyType, input.PartyID, window)
	if err != nil {
		return nil, false, err
	}
	if closed {
		now := time.Now()
		logger.Warnw("commission_late_arrival_rolled_forward",
			"order_item_id", input.OrderItemID,
			"party_type", partyType,
			"party_id", input.PartyID,
			"original_period", window.Key,
			"rolled_period", PeriodWindowOf(now).Key,
		)
		completedAt = now
		window = PeriodWindowOf(now)
	}
	currency := strings.TrimSpace(input.Currency)
	if currency == "" {
		currency = s.cfg.Settlement.Currency
	}

	txn := &models.CommissionTransaction{
		OrderItemID:      input.OrderItemID,
		OrderNo:          strings.TrimSpace(input.OrderNo),
		PartyType:        partyType,
		PartyID:          input.PartyID,
		EntryType:        constants.CommissionEntryTypeOrder,
		ProductID:        input.ProductID,
		Quantity:         input.Quantity,
		UnitPrice:        input.UnitPrice,
		GrossAmount:      breakdown.GrossAmount,
		CommissionAmount: breakdown.CommissionAmount,
		NetAmount:        breakdown.NetAmount,
		Currency:         currency,
		PolicySnapshot:   BuildPolicySnapshot(policy),
		Status:           constants.CommissionTxnStatusPending,
		PeriodKey:        window.Key,
		CompletedAt:      completedAt,
	}
	if err := s.txnRepo.Create(txn); err != nil {
		// 并发重复投递时回读已入账流水
		if isUniqueViolation(err) {
			dup, lookupErr := s.txnRepo.GetByUniqueKey(input.OrderItemID, partyType, input.PartyID, constants.CommissionEntryTypeOrder)
			if lookupErr == nil && dup != nil {
				return dup, false, nil
			}
		}
		return nil, false, err
	}

	logger.Infow("commission_recorded",
		"transaction_id", txn.ID,
		"order_item_id", txn.OrderItemID,
		"party_type", txn.PartyType,
		"party_id", txn.PartyID,
		"net_amount", txn.NetAmount.String(),
	)
	return txn, true, nil
}

// periodClosed 判断参与方在指定周期的批次是否已进入不可重算状态
func (s *CommissionService) periodClosed(partyType string, partyID uint, window PeriodWindow) (bool, error) {
	batch, err := s.batchRepo.GetByPartyPeriod(partyType, partyID, window.Start, window.End)
	if err != nil {
		return false, err
	}
	if batch == nil {
		return false, nil
	}
	return batch.Status == constants.SettlementStatusConfirmed ||
		batch.Status == constants.SettlementStatusPaid, nil
}

// AdjustCommissionInput 调整条目入参
// GrossDelta 为带符号的总额变化量（退款为负），QuantityDelta 为对应件数变化量。
type AdjustCommissionInput struct {
	TransactionID uint            `json:"transaction_id" binding:"required"`
	Reason        string          `json:"reason" binding:"required"`
	GrossDelta    decimal.Decimal `json:"gross_delta"`
	QuantityDelta int             `json:"quantity_delta"`
	Note          string          `json:"note"`
}

func validAdjustReason(reason string) bool {
	switch reason {
	case constants.AdjustReasonRefund, constants.AdjustReasonCancellation, constants.AdjustReasonManualCorrection:
		return true
	}
	return false
}

// AdjustCommission 对已入账流水追加调整条目
// 原始流水金额不可变，调整以新条目计入当前开放周期；已结算的原始流水标记为 adjusted。
func (s *CommissionService) AdjustCommission(input AdjustCommissionInput) (*models.CommissionTransaction, error) {
	reason := strings.TrimSpace(input.Reason)
	if !validAdjustReason(reason) {
		return nil, ErrAdjustReasonInvalid
	}
	if input.GrossDelta.IsZero() && input.QuantityDelta == 0 {
		return nil, ErrPolicyInvalid
	}

	var adjustment *models.CommissionTransaction
	err := s.txnRepo.Transaction(func(tx *gorm.DB) error {
		txnRepo := s.txnRepo.WithTx(tx)

		original, err := txnRepo.GetByIDForUpdate(input.TransactionID)
		if err != nil {
			return err
		}
		if original == nil {
			return ErrTransactionNotFound
		}
		// 调整条目自身不允许再次调整
		if original.OriginalTransactionID != nil {
			return ErrTransactionNotAdjustable
		}

		commissionDelta, err := ApplySnapshotToDelta(original.PolicySnapshot, original.CommissionAmount.Decimal, input.GrossDelta, input.QuantityDelta)
		if err != nil {
			return err
		}
		grossDelta := input.GrossDelta.Round(2)
		netDelta := grossDelta.Sub(commissionDelta)
		now := time.Now()

		adjustment = &models.CommissionTransaction{
			OrderItemID:           original.OrderItemID,
			OrderNo:               original.OrderNo,
			PartyType:             original.PartyType,
			PartyID:               original.PartyID,
			EntryType:             buildAdjustmentEntryType(reason, original.ID),
			ProductID:             original.ProductID,
			Quantity:              input.QuantityDelta,
			UnitPrice:             original.UnitPrice,
			GrossAmount:           models.NewMoneyFromDecimal(grossDelta),
			CommissionAmount:      models.NewMoneyFromDecimal(commissionDelta),
			NetAmount:             models.NewMoneyFromDecimal(netDelta),
			Currency:              original.Currency,
			PolicySnapshot:        original.PolicySnapshot,
			Status:                constants.CommissionTxnStatusPending,
			ReasonCode:            reason,
			Note:                  strings.TrimSpace(input.Note),
			OriginalTransactionID: &original.ID,
			PeriodKey:             PeriodWindowOf(now).Key,
			CompletedAt:           now,
		}
		if err := txnRepo.Create(adjustment); err != nil {
			return err
		}

		if original.Status == constants.CommissionTxnStatusSettled {
			original.Status = constants.CommissionTxnStatusAdjusted
			if err := txnRepo.Update(original); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("commission_adjusted",
		"original_transaction_id", input.TransactionID,
		"adjustment_id", adjustment.ID,
		"reason", adjustment.ReasonCode,
		"net_delta", adjustment.NetAmount.String(),
	)
	return adjustment, nil
}

// RefundCommission 全额退款调整的便捷入口
func (s *CommissionService) RefundCommission(transactionID uint, note string) (*models.CommissionTransaction, error) {
	original, err := s.txnRepo.GetByID(transactionID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, ErrTransactionNotFound
	}
	return s.AdjustCommission(AdjustCommissionInput{
		TransactionID: transactionID,
		Reason:        constants.AdjustReasonRefund,
		GrossDelta:    original.GrossAmount.Decimal.Neg(),
		QuantityDelta: -original.Quantity,
		Note:          note,
	})
}

// GetTransaction 查询佣金流水
func (s *CommissionService) GetTransaction(id uint) (*models.CommissionTransaction, error) {
	txn, err := s.txnRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// ListTransactions 查询佣金流水列表
func (s *CommissionService) ListTransactions(filter repository.CommissionTransactionListFilter) ([]models.CommissionTransaction, int64, error) {
	return s.txnRepo.List(filter)
}

// buildAdjustmentEntryType 生成调整条目的唯一条目类型
// 同一原始流水允许多次调整，用纳秒后缀避免命中唯一索引。
func buildAdjustmentEntryType(reason string, originalID uint) string {
	suffix := strconv.FormatInt(time.Now().UnixNano(), 36)
	entry := fmt.Sprintf("adj:%s:%s:%s", reason, strconv.FormatUint(uint64(originalID), 36), suffix)
	if len(entry) > 64 {
		entry = entry[:64]
	}
	return entry
}

// isUniqueViolation 判断是否唯一索引冲突
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
