package repository

import (
	"context"
	"errors"
	"time"

	"gomonate/internal/model"

	"gorm.io/gorm"
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Create inserts the code. ErrCodeConflict means another code already holds
// its id or, while active, its short code.
func (r *CodeRepository) Create(ctx context.Context, tx *gorm.DB, code *model.RedemptionCode) error {
	if tx == nil {
		tx = r.db
	}
	code.SyncActiveShortCode()
	if err := tx.WithContext(ctx).Create(code).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

// GetByCodeID matches the code id exactly, also on MySQL collations that
// compare case-insensitively.
func (r *CodeRepository) GetByCodeID(ctx context.Context, tx *gorm.DB, codeID string) (*model.RedemptionCode, error) {
	if tx == nil {
		tx = r.db
	}
	var code model.RedemptionCode
	err := tx.WithContext(ctx).Where("code_id = ?", codeID).First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if code.CodeID != codeID {
		return nil, ErrCodeNotFound
	}
	return &code, nil
}

// GetByShortCode matches an already upper-cased short code. Short codes of
// deactivated credentials may be reissued, so an active match wins, then the
// most recently assigned.
func (r *CodeRepository) GetByShortCode(ctx context.Context, tx *gorm.DB, shortCode string) (*model.RedemptionCode, error) {
	if tx == nil {
		tx = r.db
	}
	var code model.RedemptionCode
	err := tx.WithContext(ctx).
		Where("short_code = ?", shortCode).
		Order("is_active DESC, assigned_at DESC").
		First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *CodeRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*model.RedemptionCode, error) {
	var codes []*model.RedemptionCode
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("assigned_at DESC").
		Find(&codes).Error
	return codes, err
}

// ShortCodeInUse reports whether an active code already carries shortCode.
func (r *CodeRepository) ShortCodeInUse(ctx context.Context, tx *gorm.DB, shortCode string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var n int64
	err := tx.WithContext(ctx).
		Model(&model.RedemptionCode{}).
		Where("short_code = ? AND is_active = ?", shortCode, true).
		Count(&n).Error
	return n > 0, err
}

// DeactivateForEmployee switches off every active code of the employee and
// returns how many were affected.
func (r *CodeRepository) DeactivateForEmployee(ctx context.Context, tx *gorm.DB, employeeID string, at time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.RedemptionCode{}).
		Where("employee_id = ? AND is_active = ?", employeeID, true).
		Updates(map[string]interface{}{
			"is_active":         false,
			"active_short_code": nil,
			"deactivated_at":    at,
		})
	return result.RowsAffected, result.Error
}

// Deactivate switches off one code. It returns false if the code was
// already inactive.
func (r *CodeRepository) Deactivate(ctx context.Context, tx *gorm.DB, codeID string, at time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.RedemptionCode{}).
		Where("code_id = ? AND is_active = ?", codeID, true).
		Updates(map[string]interface{}{
			"is_active":         false,
			"active_short_code": nil,
			"deactivated_at":    at,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkRegistered records the first self-registration of a code. It returns
// false when the code was already registered.
func (r *CodeRepository) MarkRegistered(ctx context.Context, tx *gorm.DB, codeID, deviceID string, at time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	updates := map[string]interface{}{
		"is_registered": true,
		"registered_at": at,
	}
	if deviceID != "" {
		updates["registered_device_id"] = deviceID
	}
	result := tx.WithContext(ctx).
		Model(&model.RedemptionCode{}).
		Where("code_id = ? AND is_registered = ?", codeID, false).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// ListExpired returns active codes whose expiry is before now.
func (r *CodeRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.RedemptionCode, error) {
	var codes []*model.RedemptionCode
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&codes).Error
	return codes, err
}
