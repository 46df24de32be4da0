package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/settle-next/internal/constants"
	"github.com/settle-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionTransactionRepository 佣金流水数据访问接口
type CommissionTransactionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionTransactionRepository

	Create(txn *models.CommissionTransaction) error
	Update(txn *models.CommissionTransaction) error
	GetByID(id uint) (*models.CommissionTransaction, error)
	GetByIDForUpdate(id uint) (*models.CommissionTransaction, error)
	GetByUniqueKey(orderItemID uint, partyType string, partyID uint, entryType string) (*models.CommissionTransaction, error)
	List(filter CommissionTransactionListFilter) ([]models.CommissionTransaction, int64, error)
	ListByIDs(ids []uint) ([]models.CommissionTransaction, error)
	ListPendingForUpdate(partyType string, partyID uint, from, to time.Time) ([]models.CommissionTransaction, error)
	ListPartiesWithPending(from, to time.Time) ([]PartyRef, error)
	BatchUpdate(ids []uint, updates map[string]interface{}) (int64, error)
}

// GormCommissionTransactionRepository GORM 佣金流水仓储
type GormCommissionTransactionRepository struct {
	db *gorm.DB
}

// NewCommissionTransactionRepository 创建佣金流水仓储
func NewCommissionTransactionRepository(db *gorm.DB) *GormCommissionTransactionRepository {
	return &GormCommissionTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionTransactionRepository) WithTx(tx *gorm.DB) CommissionTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionTransactionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionTransactionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金流水
func (r *GormCommissionTransactionRepository) Create(txn *models.CommissionTransaction) error {
	return r.db.Create(txn).Error
}

// Update 更新佣金流水
func (r *GormCommissionTransactionRepository) Update(txn *models.CommissionTransaction) error {
	return r.db.Save(txn).Error
}

// GetByID 按ID查询佣金流水
func (r *GormCommissionTransactionRepository) GetByID(id uint) (*models.CommissionTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var txn models.CommissionTransaction
	if err := r.db.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByIDForUpdate 按ID锁定查询佣金流水
func (r *GormCommissionTransactionRepository) GetByIDForUpdate(id uint) (*models.CommissionTransaction, error) {
	if id == 0 {
		return nil, nil
	}
	var txn models.CommissionTransaction
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// GetByUniqueKey 按业务唯一键查询佣金流水
func (r *GormCommissionTransactionRepository) GetByUniqueKey(orderItemID uint, partyType string, partyID uint, entryType string) (*models.CommissionTransaction, error) {
	if orderItemID == 0 || partyID == 0 {
		return nil, nil
	}
	var txn models.CommissionTransaction
	err := r.db.Where("order_item_id = ? AND party_type = ? AND party_id = ? AND entry_type = ?",
		orderItemID, strings.TrimSpace(partyType), partyID, strings.TrimSpace(entryType)).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// List 查询佣金流水列表
func (r *GormCommissionTransactionRepository) List(filter CommissionTransactionListFilter) ([]models.CommissionTransaction, int64, error) {
	query := r.db.Model(&models.CommissionTransaction{})
	if partyType := strings.TrimSpace(filter.PartyType); partyType != "" {
		query = query.Where("party_type = ?", partyType)
	}
	if filter.PartyID != 0 {
		query = query.Where("party_id = ?", filter.PartyID)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("order_no LIKE ?", "%"+orderNo+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if entryType := strings.TrimSpace(filter.EntryType); entryType != "" {
		query = query.Where("entry_type = ?", entryType)
	}
	if periodKey := strings.TrimSpace(filter.PeriodKey); periodKey != "" {
		query = query.Where("period_key = ?", periodKey)
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

	var rows []models.CommissionTransaction
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListByIDs 按ID集合查询佣金流水
func (r *GormCommissionTransactionRepository) ListByIDs(ids []uint) ([]models.CommissionTransaction, error) {
	if len(ids) == 0 {
		return []models.CommissionTransaction{}, nil
	}
	var rows []models.CommissionTransaction
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingForUpdate 查询并锁定指定参与方在周期窗口内待结算的佣金流水
// 窗口左闭右开，按业务完成时间过滤。
func (r *GormCommissionTransactionRepository) ListPendingForUpdate(partyType string, partyID uint, from, to time.Time) ([]models.CommissionTransaction, error) {
	if partyID == 0 {
		return []models.CommissionTransaction{}, nil
	}
	var rows []models.CommissionTransaction
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("party_type = ? AND party_id = ? AND status = ? AND completed_at >= ? AND completed_at < ?",
			strings.TrimSpace(partyType), partyID, constants.CommissionTxnStatusPending, from, to).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPartiesWithPending 查询周期窗口内存在待结算流水的参与方集合
func (r *GormCommissionTransactionRepository) ListPartiesWithPending(from, to time.Time) ([]PartyRef, error) {
	var rows []PartyRef
	err := r.db.Model(&models.CommissionTransaction{}).
		Select("party_type, party_id").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", constants.CommissionTxnStatusPending, from, to).
		Group("party_type, party_id").
		Order("party_type asc, party_id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BatchUpdate 批量更新佣金流水
func (r *GormCommissionTransactionRepository) BatchUpdate(ids []uint, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 || len(updates) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.CommissionTransaction{}).Where("id IN ?", ids).Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
