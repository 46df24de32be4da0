//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.SettlementLog{},
		&models.SettlementItem{},
		&models.SettlementBatch{},
		&models.CommissionTransaction{},
		&models.CommissionPolicy{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.CommissionPolicy{},
		&models.CommissionTransaction{},
		&models.SettlementBatch{},
		&models.SettlementItem{},
		&models.SettlementLog{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func newPendingTxn(orderItemID uint, partyType string, partyID uint, net int64, completedAt time.Time) *models.CommissionTransaction {
	gross := decimal.NewFromInt(net).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(4)).Round(2)
	return &models.CommissionTransaction{
		OrderItemID:      orderItemID,
		OrderNo:          "PG-ORDER-001",
		PartyType:        partyType,
		PartyID:          partyID,
		EntryType:        constants.CommissionEntryTypeOrder,
		Quantity:         1,
		UnitPrice:        models.NewMoneyFromDecimal(gross),
		GrossAmount:      models.NewMoneyFromDecimal(gross),
		CommissionAmount: models.NewMoneyFromDecimal(gross.Sub(decimal.NewFromInt(net))),
		NetAmount:        models.NewMoneyFromDecimal(decimal.NewFromInt(net)),
		Currency:         "CNY",
		Status:           constants.CommissionTxnStatusPending,
		PeriodKey:        completedAt.Format("2006-01"),
		CompletedAt:      completedAt,
	}
}

func TestPostgresCommissionTransactionUniqueKey(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCommissionTransactionRepository(db)
	completedAt := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)

	first := newPendingTxn(9001, constants.PartyTypeSeller, 77, 80, completedAt)
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first txn failed: %v", err)
	}

	// 同一 (order_item_id, party_type, party_id, entry_type) 必须命中唯一索引
	dup := newPendingTxn(9001, constants.PartyTypeSeller, 77, 80, completedAt)
	if err := repo.Create(dup); err == nil {
		t.Fatalf("duplicate unique key should be rejected by postgres")
	}

	// 换一个参与方类型则不冲突
	other := newPendingTxn(9001, constants.PartyTypeSupplier, 77, 80, completedAt)
	if err := repo.Create(other); err != nil {
		t.Fatalf("different party type should not conflict: %v", err)
	}

	found, err := repo.GetByUniqueKey(9001, constants.PartyTypeSeller, 77, constants.CommissionEntryTypeOrder)
	if err != nil {
		t.Fatalf("get by unique key failed: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Fatalf("get by unique key should hit the first row")
	}
}

func TestPostgresListPendingForUpdateWindow(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCommissionTransactionRepository(db)

	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	inside := newPendingTxn(9101, constants.PartyTypeSeller, 88, 100, from.Add(48*time.Hour))
	boundary := newPendingTxn(9102, constants.PartyTypeSeller, 88, 100, to) // 右开区间，不应命中
	before := newPendingTxn(9103, constants.PartyTypeSeller, 88, 100, from.Add(-time.Hour))
	settled := newPendingTxn(9104, constants.PartyTypeSeller, 88, 100, from.Add(24*time.Hour))
	settled.Status = constants.CommissionTxnStatusSettled
	otherParty := newPendingTxn(9105, constants.PartyTypeSeller, 99, 100, from.Add(24*time.Hour))

	for _, txn := range []*models.CommissionTransaction{inside, boundary, before, settled, otherParty} {
		if err := repo.Create(txn); err != nil {
			t.Fatalf("create txn %d failed: %v", txn.OrderItemID, err)
		}
	}

	// 行锁需在事务内生效
	err := repo.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.WithTx(tx).ListPendingForUpdate(constants.PartyTypeSeller, 88, from, to)
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			t.Fatalf("pending window want 1 row got %d", len(rows))
		}
		if rows[0].OrderItemID != 9101 {
			t.Fatalf("pending window want order_item 9101 got %d", rows[0].OrderItemID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("list pending for update failed: %v", err)
	}

	parties, err := repo.ListPartiesWithPending(from, to)
	if err != nil {
		t.Fatalf("list parties with pending failed: %v", err)
	}
	if len(parties) != 2 {
		t.Fatalf("parties with pending want 2 got %d", len(parties))
	}
	if parties[0].PartyID != 88 || parties[1].PartyID != 99 {
		t.Fatalf("parties should be ordered by party_id, got %d then %d", parties[0].PartyID, parties[1].PartyID)
	}
}

func TestPostgresSettlementBatchUniquePeriod(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewSettlementBatchRepository(db)

	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	batch := &models.SettlementBatch{
		BatchNo:     "ST2026070001",
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PeriodKey:   "2026-07",
		Status:      constants.SettlementStatusDraft,
		Currency:    "CNY",
	}
	if err := repo.Create(batch); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}

	// 同参与方同周期的第二个批次必须被唯一索引拒绝
	dup := &models.SettlementBatch{
		BatchNo:     "ST2026070002",
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		PeriodKey:   "2026-07",
		Status:      constants.SettlementStatusDraft,
		Currency:    "CNY",
	}
	if err := repo.Create(dup); err == nil {
		t.Fatalf("duplicate (party, period) batch should be rejected by postgres")
	}

	err := repo.Transaction(func(tx *gorm.DB) error {
		found, err := repo.WithTx(tx).GetByPartyPeriodForUpdate(constants.PartyTypeSeller, 77, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if found == nil || found.ID != batch.ID {
			t.Fatalf("get by party period should hit the existing batch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("get by party period for update failed: %v", err)
	}
}

func TestPostgresSumItemNetByBatch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewSettlementBatchRepository(db)

	batch := &models.SettlementBatch{
		BatchNo:     "ST2026070003",
		PartyType:   constants.PartyTypePartner,
		PartyID:     1301,
		PeriodStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodKey:   "2026-07",
		Status:      constants.SettlementStatusCalculated,
		Currency:    "CNY",
	}
	if err := repo.Create(batch); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}

	items := []models.SettlementItem{
		{
			BatchID:          batch.ID,
			TransactionID:    1,
			OrderItemID:      9201,
			EntryType:        constants.CommissionEntryTypeOrder,
			GrossAmount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(125.00)),
			CommissionAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(25.00)),
			NetAmount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(100.00)),
		},
		{
			BatchID:          batch.ID,
			TransactionID:    2,
			OrderItemID:      9202,
			EntryType:        constants.CommissionEntryTypeOrder,
			GrossAmount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(99.90)),
			CommissionAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(19.98)),
			NetAmount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(79.92)),
		},
		{
			// 负数调整条目也要计入汇总
			BatchID:          batch.ID,
			TransactionID:    3,
			OrderItemID:      9201,
			EntryType:        "adj:refund:1:abc",
			GrossAmount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(-25.00)),
			CommissionAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(-5.00)),
			NetAmount:        models.NewMoneyFromDecimal(decimal.NewFromFloat(-20.00)),
		},
	}
	if err := repo.CreateItems(items); err != nil {
		t.Fatalf("create items failed: %v", err)
	}

	total, err := repo.SumItemNetByBatch(batch.ID)
	if err != nil {
		t.Fatalf("sum item net failed: %v", err)
	}
	if total.String() != "159.92" {
		t.Fatalf("sum item net want 159.92 got %s", total.String())
	}

	if err := repo.DeleteItemsByBatch(batch.ID); err != nil {
		t.Fatalf("delete items failed: %v", err)
	}
	total, err = repo.SumItemNetByBatch(batch.ID)
	if err != nil {
		t.Fatalf("sum after delete failed: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("sum after delete want 0 got %s", total.String())
	}
}
