package service

import (
	"strings"
	"testing"
	"time"

	"github.com/settle-next/internal/constants"

	"github.com/shopspring/decimal"
)

func TestRecordCommissionIdempotent(t *testing.T) {
	deps := setupServiceTest(t)
	completedAt := time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)

	input := RecordCommissionInput{
		OrderItemID: 601,
		OrderNo:     "TEST000601",
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		Quantity:    3,
		UnitPrice:   moneyFromFloat(100.00),
		CompletedAt: completedAt,
	}
	first, created, err := deps.commission.RecordCommission(input)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if !created {
		t.Fatalf("first record should create a row")
	}
	if first.PeriodKey != "2026-07" {
		t.Fatalf("period key want 2026-07 got %s", first.PeriodKey)
	}
	if first.Currency != "CNY" {
		t.Fatalf("currency should default from config, got %s", first.Currency)
	}
	// 配置兜底 20%：300.00 × 20% = 60.00
	if first.CommissionAmount.String() != "60.00" || first.NetAmount.String() != "240.00" {
		t.Fatalf("breakdown want 60.00/240.00 got %s/%s", first.CommissionAmount.String(), first.NetAmount.String())
	}

	second, created, err := deps.commission.RecordCommission(input)
	if err != nil {
		t.Fatalf("duplicate record failed: %v", err)
	}
	if created {
		t.Fatalf("duplicate record should not create a new row")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate record should return the existing row: %d vs %d", second.ID, first.ID)
	}
}

func TestRecordCommissionUsesResolvedPolicy(t *testing.T) {
	deps := setupServiceTest(t)
	createTestPolicy(t, deps, constants.PolicyScopeSeller, 1001, constants.PolicyTypeRate, 15, true)

	txn, _, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 602,
		OrderNo:     "TEST000602",
		SellerID:    1001,
		PartyType:   constants.PartyTypeSeller,
		PartyID:     1001,
		Quantity:    2,
		UnitPrice:   moneyFromFloat(120.00),
		CompletedAt: time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	// 卖家级 15%：240.00 × 15% = 36.00
	if txn.CommissionAmount.String() != "36.00" {
		t.Fatalf("commission want 36.00 got %s", txn.CommissionAmount.String())
	}
	if txn.PolicySnapshot["scope"] != constants.PolicyScopeSeller {
		t.Fatalf("snapshot scope want seller got %v", txn.PolicySnapshot["scope"])
	}
}

func TestRecordCommissionInvalidInput(t *testing.T) {
	deps := setupServiceTest(t)

	if _, _, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 603, OrderNo: "TEST000603", PartyType: "alien", PartyID: 1, Quantity: 1,
	}); err != ErrPartyTypeInvalid {
		t.Fatalf("unknown party type want ErrPartyTypeInvalid got %v", err)
	}
	if _, _, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 603, OrderNo: "TEST000603", PartyType: constants.PartyTypeSeller, PartyID: 1, Quantity: 0,
	}); err != ErrPolicyInvalid {
		t.Fatalf("zero quantity want ErrPolicyInvalid got %v", err)
	}
	if _, _, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 0, OrderNo: "TEST000603", PartyType: constants.PartyTypeSeller, PartyID: 1, Quantity: 1,
	}); err != ErrPolicyInvalid {
		t.Fatalf("zero order item want ErrPolicyInvalid got %v", err)
	}
}

func TestRecordCommissionLateArrivalRollsForward(t *testing.T) {
	deps := setupServiceTest(t)
	mayCompleted := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	recordTestTxn(t, deps, 620, constants.PartyTypeSeller, 77, 100.00, 1, mayCompleted)

	batch, err := deps.settlement.BuildBatch(constants.PartyTypeSeller, 77, "2026-05", "tester")
	if err != nil {
		t.Fatalf("build batch failed: %v", err)
	}
	if _, err := deps.settlement.ConfirmBatch(batch.ID, "tester"); err != nil {
		t.Fatalf("confirm batch failed: %v", err)
	}

	// 所属周期批次已确认，迟到流水滚入当前开放周期，否则将永远无法被认领
	late, created, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 621,
		OrderNo:     "TEST000621",
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		Quantity:    1,
		UnitPrice:   moneyFromFloat(50.00),
		CompletedAt: time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("late record failed: %v", err)
	}
	if !created {
		t.Fatalf("late record should create a row")
	}
	openKey := PeriodWindowOf(time.Now()).Key
	if late.PeriodKey != openKey {
		t.Fatalf("late transaction period want %s got %s", openKey, late.PeriodKey)
	}

	// 已确认周期禁止重算，迟到流水由当前开放周期的批次认领
	if _, err := deps.settlement.BuildBatch(constants.PartyTypeSeller, 77, "2026-05", "tester"); err != ErrStaleRecalculation {
		t.Fatalf("confirmed period rebuild want ErrStaleRecalculation got %v", err)
	}
	open, err := deps.settlement.BuildBatch(constants.PartyTypeSeller, 77, openKey, "tester")
	if err != nil {
		t.Fatalf("build open period batch failed: %v", err)
	}
	if open.ItemCount != 1 {
		t.Fatalf("open period batch should claim the late transaction, got %d items", open.ItemCount)
	}
}

func TestAdjustCommissionAppendsEntry(t *testing.T) {
	deps := setupServiceTest(t)
	completedAt := time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC)
	original := recordTestTxn(t, deps, 604, constants.PartyTypeSeller, 77, 100.00, 3, completedAt)

	// 模拟原始流水已入批结算
	original.Status = constants.CommissionTxnStatusSettled
	if err := deps.txnRepo.Update(original); err != nil {
		t.Fatalf("mark settled failed: %v", err)
	}

	adjustment, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: original.ID,
		Reason:        constants.AdjustReasonRefund,
		GrossDelta:    decimal.NewFromFloat(-100.00),
		QuantityDelta: -1,
		Note:          "部分退款一件",
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	// 调整条目为当前开放周期的新 pending 流水，原始流水金额不变
	if adjustment.ID == original.ID {
		t.Fatalf("adjustment must be a new row")
	}
	if adjustment.Status != constants.CommissionTxnStatusPending {
		t.Fatalf("adjustment status want pending got %s", adjustment.Status)
	}
	if adjustment.PeriodKey != PeriodWindowOf(time.Now()).Key {
		t.Fatalf("adjustment should land in current period, got %s", adjustment.PeriodKey)
	}
	if adjustment.OriginalTransactionID == nil || *adjustment.OriginalTransactionID != original.ID {
		t.Fatalf("adjustment should reference the original transaction")
	}
	if !strings.HasPrefix(adjustment.EntryType, "adj:refund:") {
		t.Fatalf("adjustment entry type want adj:refund: prefix got %s", adjustment.EntryType)
	}
	// 按快照 20% 口径：-100.00 总额对应 -20.00 佣金、-80.00 净额
	if adjustment.CommissionAmount.String() != "-20.00" || adjustment.NetAmount.String() != "-80.00" {
		t.Fatalf("adjustment breakdown want -20.00/-80.00 got %s/%s",
			adjustment.CommissionAmount.String(), adjustment.NetAmount.String())
	}

	reloaded, err := deps.txnRepo.GetByID(original.ID)
	if err != nil {
		t.Fatalf("reload original failed: %v", err)
	}
	if reloaded.Status != constants.CommissionTxnStatusAdjusted {
		t.Fatalf("settled original should flip to adjusted, got %s", reloaded.Status)
	}
	if reloaded.NetAmount.String() != "240.00" {
		t.Fatalf("original amounts must stay immutable, got %s", reloaded.NetAmount.String())
	}
}

func TestAdjustCommissionPendingOriginalStaysPending(t *testing.T) {
	deps := setupServiceTest(t)
	original := recordTestTxn(t, deps, 605, constants.PartyTypeSeller, 77, 50.00, 1, time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))

	if _, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: original.ID,
		Reason:        constants.AdjustReasonManualCorrection,
		GrossDelta:    decimal.NewFromFloat(-10.00),
	}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	reloaded, err := deps.txnRepo.GetByID(original.ID)
	if err != nil {
		t.Fatalf("reload original failed: %v", err)
	}
	// 未结算的原始流水不改状态
	if reloaded.Status != constants.CommissionTxnStatusPending {
		t.Fatalf("pending original should stay pending, got %s", reloaded.Status)
	}
}

func TestAdjustCommissionRejectsAdjustmentOfAdjustment(t *testing.T) {
	deps := setupServiceTest(t)
	original := recordTestTxn(t, deps, 606, constants.PartyTypeSeller, 77, 80.00, 1, time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))

	adjustment, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: original.ID,
		Reason:        constants.AdjustReasonRefund,
		GrossDelta:    decimal.NewFromFloat(-80.00),
		QuantityDelta: -1,
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	if _, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: adjustment.ID,
		Reason:        constants.AdjustReasonManualCorrection,
		GrossDelta:    decimal.NewFromFloat(1.00),
	}); err != ErrTransactionNotAdjustable {
		t.Fatalf("adjusting an adjustment want ErrTransactionNotAdjustable got %v", err)
	}
}

func TestAdjustCommissionValidation(t *testing.T) {
	deps := setupServiceTest(t)
	original := recordTestTxn(t, deps, 607, constants.PartyTypeSeller, 77, 80.00, 1, time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))

	if _, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: original.ID,
		Reason:        "typo",
		GrossDelta:    decimal.NewFromFloat(-1.00),
	}); err != ErrAdjustReasonInvalid {
		t.Fatalf("unknown reason want ErrAdjustReasonInvalid got %v", err)
	}
	if _, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: original.ID,
		Reason:        constants.AdjustReasonRefund,
	}); err != ErrPolicyInvalid {
		t.Fatalf("zero delta want ErrPolicyInvalid got %v", err)
	}
	if _, err := deps.commission.AdjustCommission(AdjustCommissionInput{
		TransactionID: 9999,
		Reason:        constants.AdjustReasonRefund,
		GrossDelta:    decimal.NewFromFloat(-1.00),
	}); err != ErrTransactionNotFound {
		t.Fatalf("missing transaction want ErrTransactionNotFound got %v", err)
	}
}

func TestRefundCommissionClampedFixedFullReversal(t *testing.T) {
	deps := setupServiceTest(t)
	createTestPolicy(t, deps, constants.PolicyScopeProduct, 3001, constants.PolicyTypeFixed, 15, true)

	// 固定佣金 15 在入账时被封顶为总额 10，净额为 0
	original, _, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: 630,
		OrderNo:     "TEST000630",
		ProductID:   3001,
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		Quantity:    1,
		UnitPrice:   moneyFromFloat(10.00),
		CompletedAt: time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if original.CommissionAmount.String() != "10.00" || !original.NetAmount.IsZero() {
		t.Fatalf("clamped breakdown want 10.00/0.00 got %s/%s",
			original.CommissionAmount.String(), original.NetAmount.String())
	}

	// 全额冲销沿用封顶口径，净头寸恰好归零而不是增加
	adjustment, err := deps.commission.RefundCommission(original.ID, "整单退款")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if adjustment.CommissionAmount.String() != "-10.00" {
		t.Fatalf("refund commission delta want -10.00 got %s", adjustment.CommissionAmount.String())
	}
	if !adjustment.NetAmount.Decimal.Equal(original.NetAmount.Decimal.Neg()) {
		t.Fatalf("refund net delta want %s got %s",
			original.NetAmount.Neg().String(), adjustment.NetAmount.String())
	}
}

func TestRefundCommissionFullReversal(t *testing.T) {
	deps := setupServiceTest(t)
	original := recordTestTxn(t, deps, 608, constants.PartyTypeSupplier, 88, 99.90, 3, time.Date(2026, 7, 5, 9, 0, 0, 0, time.UTC))

	adjustment, err := deps.commission.RefundCommission(original.ID, "整单退款")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	// 全额冲销：净额变化量与原净额互为相反数
	if !adjustment.NetAmount.Decimal.Equal(original.NetAmount.Decimal.Neg()) {
		t.Fatalf("refund net delta want %s got %s", original.NetAmount.Neg().String(), adjustment.NetAmount.String())
	}
	if adjustment.Quantity != -original.Quantity {
		t.Fatalf("refund quantity delta want %d got %d", -original.Quantity, adjustment.Quantity)
	}
}
