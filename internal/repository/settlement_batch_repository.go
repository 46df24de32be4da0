package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/settle-next/internal/models"
	"github.com/shopspring/decimal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementBatchRepository 结算批次数据访问接口
type SettlementBatchRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) SettlementBatchRepository

	Create(batch *models.SettlementBatch) error
	Update(batch *models.SettlementBatch) error
	GetByID(id uint) (*models.SettlementBatch, error)
	GetByIDForUpdate(id uint) (*models.SettlementBatch, error)
	GetByBatchNo(batchNo string) (*models.SettlementBatch, error)
	GetByPartyPeriod(partyType string, partyID uint, periodStart, periodEnd time.Time) (*models.SettlementBatch, error)
	GetByPartyPeriodForUpdate(partyType string, partyID uint, periodStart, periodEnd time.Time) (*models.SettlementBatch, error)
	List(filter SettlementBatchListFilter) ([]models.SettlementBatch, int64, error)

	CreateItems(items []models.SettlementItem) error
	ListItemsByBatch(batchID uint) ([]models.SettlementItem, error)
	DeleteItemsByBatch(batchID uint) error
	SumItemNetByBatch(batchID uint) (decimal.Decimal, error)
}

// GormSettlementBatchRepository GORM 结算批次仓储
type GormSettlementBatchRepository struct {
	db *gorm.DB
}

// NewSettlementBatchRepository 创建结算批次仓储
func NewSettlementBatchRepository(db *gorm.DB) *GormSettlementBatchRepository {
	return &GormSettlementBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSettlementBatchRepository) WithTx(tx *gorm.DB) SettlementBatchRepository {
	if tx == nil {
		return r
	}
	return &GormSettlementBatchRepository{db: tx}
}

// Transaction 执行事务
func (r *GormSettlementBatchRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建结算批次
func (r *GormSettlementBatchRepository) Create(batch *models.SettlementBatch) error {
	return r.db.Create(batch).Error
}

// Update 更新结算批次
func (r *GormSettlementBatchRepository) Update(batch *models.SettlementBatch) error {
	return r.db.Save(batch).Error
}

// GetByID 按ID查询批次
func (r *GormSettlementBatchRepository) GetByID(id uint) (*models.SettlementBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.SettlementBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDForUpdate 按ID锁定查询批次
func (r *GormSettlementBatchRepository) GetByIDForUpdate(id uint) (*models.SettlementBatch, error) {
	if id == 0 {
		return nil, nil
	}
	var batch models.SettlementBatch
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByBatchNo 按批次号查询批次
func (r *GormSettlementBatchRepository) GetByBatchNo(batchNo string) (*models.SettlementBatch, error) {
	normalized := strings.TrimSpace(batchNo)
	if normalized == "" {
		return nil, nil
	}
	var batch models.SettlementBatch
	if err := r.db.Where("batch_no = ?", normalized).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByPartyPeriod 按参与方与周期查询批次
func (r *GormSettlementBatchRepository) GetByPartyPeriod(partyType string, partyID uint, periodStart, periodEnd time.Time) (*models.SettlementBatch, error) {
	if partyID == 0 {
		return nil, nil
	}
	var batch models.SettlementBatch
	err := r.db.
		Where("party_type = ? AND party_id = ? AND period_start = ? AND period_end = ?",
			strings.TrimSpace(partyType), partyID, periodStart, periodEnd).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByPartyPeriodForUpdate 按参与方与周期锁定查询批次
func (r *GormSettlementBatchRepository) GetByPartyPeriodForUpdate(partyType string, partyID uint, periodStart, periodEnd time.Time) (*models.SettlementBatch, error) {
	if partyID == 0 {
		return nil, nil
	}
	var batch models.SettlementBatch
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("party_type = ? AND party_id = ? AND period_start = ? AND period_end = ?",
			strings.TrimSpace(partyType), partyID, periodStart, periodEnd).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// List 查询批次列表
func (r *GormSettlementBatchRepository) List(filter SettlementBatchListFilter) ([]models.SettlementBatch, int64, error) {
	query := r.db.Model(&models.SettlementBatch{})
	if partyType := strings.TrimSpace(filter.PartyType); partyType != "" {
		query = query.Where("party_type = ?", partyType)
	}
	if filter.PartyID != 0 {
		query = query.Where("party_id = ?", filter.PartyID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if periodKey := strings.TrimSpace(filter.PeriodKey); periodKey != "" {
		query = query.Where("period_key = ?", periodKey)
	}
	if batchNo := strings.TrimSpace(filter.BatchNo); batchNo != "" {
		query = query.Where("batch_no LIKE ?", "%"+batchNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.SettlementBatch
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CreateItems 批量创建批次明细
func (r *GormSettlementBatchRepository) CreateItems(items []models.SettlementItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(&items).Error
}

// ListItemsByBatch 查询批次明细
func (r *GormSettlementBatchRepository) ListItemsByBatch(batchID uint) ([]models.SettlementItem, error) {
	if batchID == 0 {
		return []models.SettlementItem{}, nil
	}
	var rows []models.SettlementItem
	if err := r.db.Where("batch_id = ?", batchID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteItemsByBatch 删除批次明细
func (r *GormSettlementBatchRepository) DeleteItemsByBatch(batchID uint) error {
	if batchID == 0 {
		return nil
	}
	return r.db.Where("batch_id = ?", batchID).Delete(&models.SettlementItem{}).Error
}

// SumItemNetByBatch 汇总批次明细净额
func (r *GormSettlementBatchRepository) SumItemNetByBatch(batchID uint) (decimal.Decimal, error) {
	if batchID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.SettlementItem{}).
		Select("COALESCE(SUM(net_amount), 0) AS total").
		Where("batch_id = ?", batchID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
