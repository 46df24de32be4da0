package models

import (
	"time"
)

// SettlementLog 结算流水日志表
// 只追加不修改，记录批次的每一次状态迁移与关键动作。
type SettlementLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                              // 主键
	BatchID    uint      `gorm:"not null;index" json:"batch_id"`                    // 批次ID
	Action     string    `gorm:"type:varchar(32);not null;index" json:"action"`     // 动作
	FromStatus string    `gorm:"type:varchar(20)" json:"from_status,omitempty"`     // 迁移前状态
	ToStatus   string    `gorm:"type:varchar(20)" json:"to_status,omitempty"`       // 迁移后状态
	Actor      string    `gorm:"type:varchar(64);not null" json:"actor"`            // 操作者
	Detail     JSON      `gorm:"type:json" json:"detail,omitempty"`                 // 附加明细
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                           // 创建时间
}

// TableName 指定表名
func (SettlementLog) TableName() string {
	return "settlement_logs"
}
