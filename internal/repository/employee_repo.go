package repository

import (
	"context"
	"errors"

	"gomonate/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) Create(ctx context.Context, tx *gorm.DB, e *model.Employee) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrEmployeeExists
		}
		return err
	}
	return nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, tx *gorm.DB, employeeID string) (*model.Employee, error) {
	if tx == nil {
		tx = r.db
	}
	var e model.Employee
	err := tx.WithContext(ctx).Where("employee_id = ?", employeeID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &e, nil
}

// GetByIDForUpdate reads the employee and holds a row lock on it until tx
// ends. SQLite has no row locks; its write transactions serialize anyway.
func (r *EmployeeRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, employeeID string) (*model.Employee, error) {
	if tx == nil {
		tx = r.db
	}
	return r.GetByID(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), employeeID)
}

// GetByEmail returns nil, nil when no employee has the address.
func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*model.Employee, error) {
	var e model.Employee
	err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// DeductToken takes amount tokens from the employee if the stored version
// still equals version and the balance covers amount.
//
// When no row matches, the row is re-read on the same handle to tell an
// exhausted balance (ErrBalanceNotEnough) from a concurrent writer
// (ErrOptimisticLock).
func (r *EmployeeRepository) DeductToken(ctx context.Context, tx *gorm.DB, employeeID string, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Employee{}).
		Where("employee_id = ? AND token_balance >= ? AND version = ?", employeeID, amount, version).
		Updates(map[string]interface{}{
			"token_balance": gorm.Expr("token_balance - ?", amount),
			"version":       gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		e, err := r.GetByID(ctx, tx, employeeID)
		if err != nil {
			return err
		}
		if e.TokenBalance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// MarkCodeAssigned points the employee at a freshly issued code.
func (r *EmployeeRepository) MarkCodeAssigned(ctx context.Context, tx *gorm.DB, employeeID, codeID string) error {
	return r.updateRegistration(ctx, tx, employeeID, map[string]interface{}{
		"registration_status": model.RegistrationStatusCodeAssigned,
		"current_code_id":     codeID,
	})
}

func (r *EmployeeRepository) MarkRegistered(ctx context.Context, tx *gorm.DB, employeeID string) error {
	return r.updateRegistration(ctx, tx, employeeID, map[string]interface{}{
		"registration_status": model.RegistrationStatusRegistered,
	})
}

func (r *EmployeeRepository) updateRegistration(ctx context.Context, tx *gorm.DB, employeeID string, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Employee{}).
		Where("employee_id = ?", employeeID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// List pages through employees, optionally filtered by a prefix of the
// email, first name or last name.
func (r *EmployeeRepository) List(ctx context.Context, search string, page, pageSize int) ([]*model.Employee, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	var employees []*model.Employee
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Employee{})
	if search != "" {
		like := search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("last_name ASC, first_name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&employees).Error

	return employees, total, err
}

// ListAfter returns up to limit employees with an id greater than afterID,
// ordered by id. Used to walk the whole table in batches.
func (r *EmployeeRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]*model.Employee, error) {
	var employees []*model.Employee
	err := r.db.WithContext(ctx).
		Where("employee_id > ?", afterID).
		Order("employee_id ASC").
		Limit(limit).
		Find(&employees).Error
	return employees, err
}

func (r *EmployeeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Employee{}).Count(&n).Error
	return n, err
}

func (r *EmployeeRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("registration_status = ?", status).
		Count(&n).Error
	return n, err
}

func (r *EmployeeRepository) SumBalance(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.Employee{}).
		Select("COALESCE(SUM(token_balance), 0)").
		Scan(&sum).Error
	return sum, err
}
