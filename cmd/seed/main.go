package main

import (
	"fmt"
	"time"

	"github.com/settle-next/internal/config"
	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/logger"
	"github.com/settle-next/internal/models"
	"github.com/settle-next/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 佣金策略：全局兜底 + 卖家级 + 商品级
	policies := []models.CommissionPolicy{
		{
			Scope:      constants.PolicyScopeGlobal,
			TargetID:   0,
			PolicyType: constants.PolicyTypeRate,
			Value:      models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			IsActive:   true,
			Note:       "平台全局兜底抽佣 20%",
		},
		{
			Scope:      constants.PolicyScopeSeller,
			TargetID:   1001,
			PolicyType: constants.PolicyTypeRate,
			Value:      models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
			IsActive:   true,
			Note:       "演示卖家优惠费率 15%",
		},
		{
			Scope:      constants.PolicyScopeProduct,
			TargetID:   2001,
			PolicyType: constants.PolicyTypeFixed,
			Value:      models.NewMoneyFromDecimal(decimal.NewFromFloat(5.00)),
			IsActive:   true,
			Note:       "演示商品按件固定抽佣 5 元",
		},
	}

	for _, policy := range policies {
		var existing models.CommissionPolicy
		err := models.DB.Where("scope = ? AND target_id = ?", policy.Scope, policy.TargetID).First(&existing).Error
		if err != nil {
			if err := models.DB.Create(&policy).Error; err != nil {
				stdLog.Printf("Failed to create policy %s/%d: %v", policy.Scope, policy.TargetID, err)
			} else {
				stdLog.Printf("Created policy: %s/%d", policy.Scope, policy.TargetID)
			}
			continue
		}
		existing.PolicyType = policy.PolicyType
		existing.Value = policy.Value
		existing.IsActive = policy.IsActive
		existing.Note = policy.Note
		if err := models.DB.Save(&existing).Error; err != nil {
			stdLog.Printf("Failed to update policy %s/%d: %v", policy.Scope, policy.TargetID, err)
		} else {
			stdLog.Printf("Updated policy: %s/%d", policy.Scope, policy.TargetID)
		}
	}

	// 演示佣金流水：落在上一个自然月，便于立即构建批次
	window := service.PreviousPeriodWindow(time.Now())
	completedAt := window.Start.Add(72 * time.Hour)
	demoTxns := []struct {
		OrderItemID uint
		OrderNo     string
		ProductID   uint
		PartyType   string
		PartyID     uint
		Quantity    int
		UnitPrice   float64
		RatePercent int64
	}{
		{OrderItemID: 90001, OrderNo: "SEED20260801A", ProductID: 3001, PartyType: constants.PartyTypeSeller, PartyID: 1001, Quantity: 2, UnitPrice: 120.00, RatePercent: 15},
		{OrderItemID: 90002, OrderNo: "SEED20260801A", ProductID: 3002, PartyType: constants.PartyTypeSupplier, PartyID: 1201, Quantity: 1, UnitPrice: 860.00, RatePercent: 20},
		{OrderItemID: 90003, OrderNo: "SEED20260802B", ProductID: 3001, PartyType: constants.PartyTypeSeller, PartyID: 1001, Quantity: 3, UnitPrice: 99.90, RatePercent: 15},
		{OrderItemID: 90004, OrderNo: "SEED20260803C", ProductID: 3003, PartyType: constants.PartyTypePartner, PartyID: 1301, Quantity: 1, UnitPrice: 450.00, RatePercent: 20},
	}

	for _, item := range demoTxns {
		var existing models.CommissionTransaction
		err := models.DB.Where(
			"order_item_id = ? AND party_type = ? AND party_id = ? AND entry_type = ?",
			item.OrderItemID, item.PartyType, item.PartyID, constants.CommissionEntryTypeOrder,
		).First(&existing).Error
		if err == nil {
			stdLog.Printf("Commission txn already exists: order_item=%d party=%s/%d", item.OrderItemID, item.PartyType, item.PartyID)
			continue
		}

		unitPrice := decimal.NewFromFloat(item.UnitPrice)
		gross := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		commission := gross.Mul(decimal.NewFromInt(item.RatePercent)).Div(decimal.NewFromInt(100)).Round(2)
		txn := models.CommissionTransaction{
			OrderItemID:      item.OrderItemID,
			OrderNo:          item.OrderNo,
			PartyType:        item.PartyType,
			PartyID:          item.PartyID,
			EntryType:        constants.CommissionEntryTypeOrder,
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPrice:        models.NewMoneyFromDecimal(unitPrice),
			GrossAmount:      models.NewMoneyFromDecimal(gross),
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			NetAmount:        models.NewMoneyFromDecimal(gross.Sub(commission)),
			Currency:         cfg.Settlement.Currency,
			PolicySnapshot: models.JSON(map[string]interface{}{
				"policy_id":   0,
				"scope":       constants.PolicyScopeGlobal,
				"policy_type": constants.PolicyTypeRate,
				"value":       decimal.NewFromInt(item.RatePercent).String(),
			}),
			Status:      constants.CommissionTxnStatusPending,
			PeriodKey:   window.Key,
			CompletedAt: completedAt,
		}
		if err := models.DB.Create(&txn).Error; err != nil {
			stdLog.Printf("Failed to create commission txn order_item=%d: %v", item.OrderItemID, err)
		} else {
			stdLog.Printf("Created commission txn: order_item=%d party=%s/%d", item.OrderItemID, item.PartyType, item.PartyID)
		}
	}

	// 初始化默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Commission policies (global/seller/product)")
	fmt.Printf("- 4 Pending commission transactions in period %s\n", window.Key)
	fmt.Println("- Default admin account")
}
