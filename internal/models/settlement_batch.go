package models

import (
	"time"
)

// SettlementBatch 结算批次表
// 同一参与方同一周期只允许一个批次，(party_type, party_id, period_start, period_end) 唯一。
type SettlementBatch struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                              // 主键
	BatchNo          string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"batch_no"`                             // 批次号
	PartyType        string     `gorm:"type:varchar(20);not null;index:idx_settlement_batch_unique,unique" json:"party_type"` // 参与方类型
	PartyID          uint       `gorm:"not null;index:idx_settlement_batch_unique,unique" json:"party_id"`                 // 参与方ID
	PeriodStart      time.Time  `gorm:"not null;index:idx_settlement_batch_unique,unique" json:"period_start"`             // 周期起（含）
	PeriodEnd        time.Time  `gorm:"not null;index:idx_settlement_batch_unique,unique" json:"period_end"`               // 周期止（不含）
	PeriodKey        string     `gorm:"type:varchar(7);not null;index" json:"period_key"`                                  // 周期键（YYYY-MM）
	Status           string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`                     // 状态
	ItemCount        int        `gorm:"not null;default:0" json:"item_count"`                                              // 明细条数
	TotalGross       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_gross"`                          // 总额合计
	TotalCommission  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_commission"`                     // 佣金合计
	TotalNet         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_net"`                            // 净额合计
	AdjustmentAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"adjustment_amount"`                    // 调整金额合计（可为负）
	PayableAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"payable_amount"`                       // 应付金额
	Currency         string     `gorm:"type:varchar(10);not null;default:'CNY'" json:"currency"`                           // 币种
	Version          int        `gorm:"not null;default:0" json:"version"`                                                 // 重算版本号
	FailureReason    string     `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`                                 // 失败原因
	PayoutTradeNo    string     `gorm:"type:varchar(64);index" json:"payout_trade_no,omitempty"`                           // 打款流水号
	CalculatedAt     *time.Time `json:"calculated_at,omitempty"`                                                           // 计算完成时间
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`                                                            // 确认时间
	PaidAt           *time.Time `json:"paid_at,omitempty"`                                                                 // 打款完成时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                           // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                                        // 更新时间
}

// TableName 指定表名
func (SettlementBatch) TableName() string {
	return "settlement_batches"
}

// IsTerminal 判断批次是否处于终态
func (b *SettlementBatch) IsTerminal() bool {
	return b.Status == "paid" || b.Status == "cancelled"
}
