package models

import (
	"time"
)

// CommissionTransaction 佣金流水表
// 订单项维度的分账记录，(order_item_id, party_type, party_id, entry_type) 唯一，
// 同一事件重复投递时直接命中唯一索引保证幂等。
type CommissionTransaction struct {
	ID                    uint       `gorm:"primarykey" json:"id"`                                                                   // 主键
	OrderItemID           uint       `gorm:"not null;index:idx_commission_txn_unique,unique" json:"order_item_id"`                  // 订单项ID
	OrderNo               string     `gorm:"type:varchar(64);not null;index" json:"order_no"`                                       // 订单号
	PartyType             string     `gorm:"type:varchar(20);not null;index:idx_commission_txn_unique,unique" json:"party_type"`    // 参与方类型
	PartyID               uint       `gorm:"not null;index:idx_commission_txn_unique,unique" json:"party_id"`                       // 参与方ID
	EntryType             string     `gorm:"type:varchar(64);not null;default:'order';index:idx_commission_txn_unique,unique" json:"entry_type"` // 条目类型（order 或调整条目）
	ProductID             uint       `gorm:"not null;default:0;index" json:"product_id"`                                            // 商品ID
	Quantity              int        `gorm:"not null;default:1" json:"quantity"`                                                    // 数量
	UnitPrice             Money      `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`                               // 单价
	GrossAmount           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"gross_amount"`                             // 总额
	CommissionAmount      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`                        // 佣金金额
	NetAmount             Money      `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`                               // 净额
	Currency              string     `gorm:"type:varchar(10);not null;default:'CNY'" json:"currency"`                               // 币种
	PolicySnapshot        JSON       `gorm:"type:json" json:"policy_snapshot"`                                                      // 策略快照
	Status                string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_commission_txn_claim" json:"status"` // 状态（pending/settled/adjusted）
	ReasonCode            string     `gorm:"type:varchar(32)" json:"reason_code,omitempty"`                                         // 调整原因（仅调整条目）
	Note                  string     `gorm:"type:varchar(255)" json:"note,omitempty"`                                               // 备注
	OriginalTransactionID *uint      `gorm:"index" json:"original_transaction_id,omitempty"`                                        // 原始流水ID（仅调整条目）
	PeriodKey             string     `gorm:"type:varchar(7);not null;index" json:"period_key"`                                      // 归属结算周期（YYYY-MM）
	CompletedAt           time.Time  `gorm:"not null;index:idx_commission_txn_claim" json:"completed_at"`                           // 业务完成时间
	SettledAt             *time.Time `json:"settled_at,omitempty"`                                                                  // 入批时间
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`                                                               // 创建时间
	UpdatedAt             time.Time  `json:"updated_at"`                                                                            // 更新时间
}

// TableName 指定表名
func (CommissionTransaction) TableName() string {
	return "commission_transactions"
}
