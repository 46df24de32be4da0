package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/provider"
	"github.com/settle-next/internal/queue"
	"github.com/settle-next/internal/repository"
	"github.com/settle-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTestContainer(t *testing.T) *provider.Container {
	t.Helper()

	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	policyRepo := repository.NewPolicyRepository(db)
	txnRepo := repository.NewCommissionTransactionRepository(db)
	batchRepo := repository.NewSettlementBatchRepository(db)
	logRepo := repository.NewSettlementLogRepository(db)

	policySvc := service.NewPolicyService(cfg, policyRepo)
	return &provider.Container{
		Config:            cfg,
		Queue:             queueClient,
		PolicyRepo:        policyRepo,
		CommissionTxnRepo: txnRepo,
		SettlementRepo:    batchRepo,
		SettlementLogRepo: logRepo,
		PolicyService:     policySvc,
		CommissionService: service.NewCommissionService(cfg, txnRepo, batchRepo, policySvc),
		SettlementService: service.NewSettlementService(cfg, batchRepo, txnRepo, logRepo, queueClient),
	}
}

func TestHandleCommissionRecordNilConsumer(t *testing.T) {
	var c *Consumer
	if err := c.handleCommissionRecord(context.Background(), nil); err != nil {
		t.Fatalf("nil consumer should be a no-op, got %v", err)
	}
}

func TestHandleCommissionRecordInvalidJSON(t *testing.T) {
	consumer := NewConsumer(setupWorkerTestContainer(t))
	task := asynq.NewTask(queue.TaskCommissionRecord, []byte("{not-json"))
	if err := consumer.handleCommissionRecord(context.Background(), task); err == nil {
		t.Fatalf("invalid json payload should return error")
	}
}

func TestHandleCommissionRecordCreatesAndDeduplicates(t *testing.T) {
	container := setupWorkerTestContainer(t)
	consumer := NewConsumer(container)

	payload := queue.CommissionRecordPayload{
		OrderItemID: 501,
		OrderNo:     "SN202608300001",
		ProductID:   9,
		PartyType:   constants.PartyTypeSeller,
		PartyID:     77,
		Quantity:    3,
		UnitPrice:   "100.00",
		Currency:    "CNY",
		CompletedAt: time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	task := asynq.NewTask(queue.TaskCommissionRecord, body)

	if err := consumer.handleCommissionRecord(context.Background(), task); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	// 重复投递应幂等成功
	if err := consumer.handleCommissionRecord(context.Background(), task); err != nil {
		t.Fatalf("duplicate delivery should succeed: %v", err)
	}

	rows, total, err := container.CommissionTxnRepo.List(repository.CommissionTransactionListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", total)
	}
	// 全局兜底 20%：300.00 × 20% = 60.00
	if got := rows[0].CommissionAmount.String(); got != "60.00" {
		t.Fatalf("commission amount want 60.00 got %s", got)
	}
	if got := rows[0].NetAmount.String(); got != "240.00" {
		t.Fatalf("net amount want 240.00 got %s", got)
	}
}

func TestHandleCommissionRecordInvalidPartySkips(t *testing.T) {
	consumer := NewConsumer(setupWorkerTestContainer(t))

	payload := queue.CommissionRecordPayload{
		OrderItemID: 502,
		OrderNo:     "SN202608300002",
		PartyType:   "alien",
		PartyID:     1,
		Quantity:    1,
		UnitPrice:   "10.00",
	}
	body, _ := json.Marshal(payload)
	task := asynq.NewTask(queue.TaskCommissionRecord, body)

	// 参与方类型非法属于不可重试错误，应吞掉避免无限重试
	if err := consumer.handleCommissionRecord(context.Background(), task); err != nil {
		t.Fatalf("invalid party type should not be retried: %v", err)
	}
}

func TestHandleSettlementBuildAllEmptyPeriodDefaultsToPrevious(t *testing.T) {
	consumer := NewConsumer(setupWorkerTestContainer(t))

	body, _ := json.Marshal(queue.SettlementBuildAllPayload{})
	task := asynq.NewTask(queue.TaskSettlementBuildAll, body)
	if err := consumer.handleSettlementBuildAll(context.Background(), task); err != nil {
		t.Fatalf("build all with empty period should settle previous month: %v", err)
	}
}

func TestHandleSettlementBuildFinalizedBatchSkips(t *testing.T) {
	container := setupWorkerTestContainer(t)
	consumer := NewConsumer(container)

	window := service.PreviousPeriodWindow(time.Now())
	batch := &models.SettlementBatch{
		BatchNo:     "STTESTCONFIRMED0001",
		PartyType:   constants.PartyTypeSeller,
		PartyID:     88,
		PeriodStart: window.Start,
		PeriodEnd:   window.End,
		PeriodKey:   window.Key,
		Status:      constants.SettlementStatusConfirmed,
		Currency:    "CNY",
	}
	if err := container.SettlementRepo.Create(batch); err != nil {
		t.Fatalf("create batch failed: %v", err)
	}

	body, _ := json.Marshal(queue.SettlementBuildPayload{
		PartyType: constants.PartyTypeSeller,
		PartyID:   88,
		PeriodKey: window.Key,
	})
	task := asynq.NewTask(queue.TaskSettlementBuild, body)
	if err := consumer.handleSettlementBuild(context.Background(), task); err != nil {
		t.Fatalf("rebuild of confirmed batch should be skipped, got %v", err)
	}
}
