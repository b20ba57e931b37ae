package repository

import (
	"context"
	"errors"
	"time"

	"gomonate/internal/model"

	"gorm.io/gorm"
)

// TransactionFilter narrows a transaction listing. Zero fields are ignored.
type TransactionFilter struct {
	EmployeeID string
	ScannerID  string
	From       time.Time
	To         time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends an audit row. Rows are never updated afterwards.
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.TokenTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

// ListByEmployee returns the newest limit transactions of an employee.
func (r *TransactionRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]*model.TokenTransaction, error) {
	var transactions []*model.TokenTransaction
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// GetLatestByEmployee returns nil, nil when the employee never redeemed.
func (r *TransactionRepository) GetLatestByEmployee(ctx context.Context, tx *gorm.DB, employeeID string) (*model.TokenTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.TokenTransaction
	err := tx.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("id DESC").
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) SumAmountByEmployee(ctx context.Context, tx *gorm.DB, employeeID string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var sum int64
	err := tx.WithContext(ctx).
		Model(&model.TokenTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("employee_id = ? AND type = ?", employeeID, model.TransactionTypeRedemption).
		Scan(&sum).Error
	return sum, err
}

func (r *TransactionRepository) CountByType(ctx context.Context, txType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.TokenTransaction{}).
		Where("type = ?", txType).
		Count(&n).Error
	return n, err
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter, page, pageSize int) ([]*model.TokenTransaction, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var transactions []*model.TokenTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TokenTransaction{})
	if f.EmployeeID != "" {
		query = query.Where("employee_id = ?", f.EmployeeID)
	}
	if f.ScannerID != "" {
		query = query.Where("scanner_id = ?", f.ScannerID)
	}
	if !f.From.IsZero() {
		query = query.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("created_at < ?", f.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// RedeemedByEmployee returns the redeemed token count per employee id.
func (r *TransactionRepository) RedeemedByEmployee(ctx context.Context) (map[string]int64, error) {
	type row struct {
		EmployeeID string
		Total      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.TokenTransaction{}).
		Select("employee_id, COALESCE(SUM(amount), 0) AS total").
		Where("type = ?", model.TransactionTypeRedemption).
		Group("employee_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.EmployeeID] = r.Total
	}
	return out, nil
}
