package repository

import (
	"strings"

	"github.com/settle-next/internal/models"

	"gorm.io/gorm"
)

// SettlementLogRepository 结算日志数据访问接口
// 日志只追加，不提供更新或删除。
type SettlementLogRepository interface {
	WithTx(tx *gorm.DB) SettlementLogRepository

	Create(log *models.SettlementLog) error
	ListByBatch(batchID uint) ([]models.SettlementLog, error)
	List(filter SettlementLogListFilter) ([]models.SettlementLog, int64, error)
}

// GormSettlementLogRepository GORM 结算日志仓储
type GormSettlementLogRepository struct {
	db *gorm.DB
}

// NewSettlementLogRepository 创建结算日志仓储
func NewSettlementLogRepository(db *gorm.DB) *GormSettlementLogRepository {
	return &GormSettlementLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSettlementLogRepository) WithTx(tx *gorm.DB) SettlementLogRepository {
	if tx == nil {
		return r
	}
	return &GormSettlementLogRepository{db: tx}
}

// Create 追加日志
func (r *GormSettlementLogRepository) Create(log *models.SettlementLog) error {
	return r.db.Create(log).Error
}

// ListByBatch 按批次查询日志，按写入顺序返回
func (r *GormSettlementLogRepository) ListByBatch(batchID uint) ([]models.SettlementLog, error) {
	if batchID == 0 {
		return []models.SettlementLog{}, nil
	}
	var rows []models.SettlementLog
	if err := r.db.Where("batch_id = ?", batchID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询日志列表
func (r *GormSettlementLogRepository) List(filter SettlementLogListFilter) ([]models.SettlementLog, int64, error) {
	query := r.db.Model(&models.SettlementLog{})
	if filter.BatchID != 0 {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.SettlementLog
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
