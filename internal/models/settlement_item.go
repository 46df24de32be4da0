package models

import (
	"time"
)

// SettlementItem 结算批次明细表
// 一条佣金流水最多归属一个批次，transaction_id 唯一。
type SettlementItem struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                     // 主键
	BatchID          uint      `gorm:"not null;index" json:"batch_id"`                           // 批次ID
	TransactionID    uint      `gorm:"not null;uniqueIndex" json:"transaction_id"`               // 佣金流水ID
	OrderItemID      uint      `gorm:"not null" json:"order_item_id"`                            // 订单项ID
	EntryType        string    `gorm:"type:varchar(64);not null" json:"entry_type"`              // 条目类型
	GrossAmount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"gross_amount"`      // 总额
	CommissionAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"` // 佣金金额
	NetAmount        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`        // 净额
	CreatedAt        time.Time `json:"created_at"`                                               // 创建时间
}

// TableName 指定表名
func (SettlementItem) TableName() string {
	return "settlement_items"
}
