package repository

import "time"

// PolicyListFilter 查询佣金策略列表的过滤条件
type PolicyListFilter struct {
	Page       int
	PageSize   int
	Scope      string
	TargetID   uint
	PolicyType string
	ActiveOnly bool
}

// CommissionTransactionListFilter 查询佣金流水列表的过滤条件
type CommissionTransactionListFilter struct {
	Page        int
	PageSize    int
	PartyType   string
	PartyID     uint
	OrderNo     string
	Status      string
	EntryType   string
	PeriodKey   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SettlementBatchListFilter 查询结算批次列表的过滤条件
type SettlementBatchListFilter struct {
	Page        int
	PageSize    int
	PartyType   string
	PartyID     uint
	Status      string
	PeriodKey   string
	BatchNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// SettlementLogListFilter 查询结算日志列表的过滤条件
type SettlementLogListFilter struct {
	Page     int
	PageSize int
	BatchID  uint
	Action   string
}

// PartyRef 参与方标识
type PartyRef struct {
	PartyType string `gorm:"column:party_type"`
	PartyID   uint   `gorm:"column:party_id"`
}
