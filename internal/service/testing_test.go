package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func moneyFromFloat(v float64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(v))
}

// serviceTestDeps 服务层测试依赖集合
type serviceTestDeps struct {
	db         *gorm.DB
	cfg        *config.Config
	policyRepo repository.PolicyRepository
	txnRepo    repository.CommissionTransactionRepository
	batchRepo  repository.SettlementBatchRepository
	logRepo    repository.SettlementLogRepository
	policySvc  *PolicyService
	commission *CommissionService
	settlement *SettlementService
}

func setupServiceTest(t *testing.T) *serviceTestDeps {
	t.Helper()

	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.CommissionPolicy{},
		&models.CommissionTransaction{},
		&models.SettlementBatch{},
		&models.SettlementItem{},
		&models.SettlementLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{
		Settlement: config.SettlementConfig{
			DefaultCommissionRate: 20,
			Currency:              "CNY",
		},
	}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	deps := &serviceTestDeps{
		db:         db,
		cfg:        cfg,
		policyRepo: repository.NewPolicyRepository(db),
		txnRepo:    repository.NewCommissionTransactionRepository(db),
		batchRepo:  repository.NewSettlementBatchRepository(db),
		logRepo:    repository.NewSettlementLogRepository(db),
	}
	deps.policySvc = NewPolicyService(cfg, deps.policyRepo)
	deps.commission = NewCommissionService(cfg, deps.txnRepo, deps.batchRepo, deps.policySvc)
	deps.settlement = NewSettlementService(cfg, deps.batchRepo, deps.txnRepo, deps.logRepo, queueClient)
	return deps
}

// recordTestTxn 入账一条订单项流水，默认命中配置兜底 20% 费率
func recordTestTxn(t *testing.T, deps *serviceTestDeps, orderItemID uint, partyType string, partyID uint, unitPrice float64, quantity int, completedAt time.Time) *models.CommissionTransaction {
	t.Helper()
	txn, created, err := deps.commission.RecordCommission(RecordCommissionInput{
		OrderItemID: orderItemID,
		OrderNo:     fmt.Sprintf("TEST%06d", orderItemID),
		PartyType:   partyType,
		PartyID:     partyID,
		Quantity:    quantity,
		UnitPrice:   moneyFromFloat(unitPrice),
		CompletedAt: completedAt,
	})
	if err != nil {
		t.Fatalf("record commission order_item=%d failed: %v", orderItemID, err)
	}
	if !created {
		t.Fatalf("record commission order_item=%d should create a new row", orderItemID)
	}
	return txn
}
