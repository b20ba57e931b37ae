package repository

import (
	"context"
	"errors"
	"time"

	"gomonate/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *model.SystemUser) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.SystemUser, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.SystemUser, error) {
	return r.getBy(ctx, "email = ?", model.NormalizeEmail(email))
}

func (r *UserRepository) getBy(ctx context.Context, cond string, arg interface{}) (*model.SystemUser, error) {
	var u model.SystemUser
	err := r.db.WithContext(ctx).Where(cond, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*model.SystemUser, error) {
	var users []*model.SystemUser
	err := r.db.WithContext(ctx).Order("role ASC, email ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, map[string]interface{}{"is_active": active})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error {
	return r.update(ctx, id, map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": mustChange,
	})
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"last_login_at": at})
}

func (r *UserRepository) update(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.SystemUser{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountActiveByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.SystemUser{}).
		Where("role = ? AND is_active = ?", role, true).
		Count(&n).Error
	return n, err
}
