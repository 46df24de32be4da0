package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionPolicy 佣金策略表
// scope=product 时 target_id 为商品ID，scope=seller 时为卖家ID，scope=global 时为 0。
type CommissionPolicy struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                                              // 主键
	Scope      string         `gorm:"type:varchar(20);not null;index:idx_policy_scope_target" json:"scope"`             // 策略作用域
	TargetID   uint           `gorm:"not null;default:0;index:idx_policy_scope_target" json:"target_id"`                // 作用对象ID
	PolicyType string         `gorm:"type:varchar(20);not null" json:"policy_type"`                                     // 策略类型（rate/fixed）
	Value      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"value"`                               // 比例（百分比，如 20.00）或单件固定金额
	IsActive   bool           `gorm:"not null;default:true;index:idx_policy_scope_target" json:"is_active"`             // 是否生效
	Note       string         `gorm:"type:varchar(255)" json:"note"`                                                    // 备注
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                                          // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`                                                                       // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                                                   // 软删除时间
}

// TableName 指定表名
func (CommissionPolicy) TableName() string {
	return "commission_policies"
}
