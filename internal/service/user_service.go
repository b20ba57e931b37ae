package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gomonate/internal/auth"
	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService manages staff accounts and issues their access tokens.
type UserService struct {
	cfg      *config.Config
	log      logging.Logger
	userRepo *repository.UserRepository
}

func NewUserService(db *gorm.DB, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		cfg:      cfg,
		log:      log.With("component", "users"),
		userRepo: repository.NewUserRepository(db),
	}
}

type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *model.SystemUser `json:"user"`
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		s.log.Warn(ctx, "login failed", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	token, expiresAt, err := auth.GenerateToken(u.ID, u.Role, []byte(s.cfg.Auth.JWTSecret), s.cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := s.userRepo.TouchLogin(ctx, u.ID, time.Now()); err != nil {
		s.log.Warn(ctx, "record last login", "user_id", u.ID, "error", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", u.ID, "role", u.Role)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// Authenticate checks a bearer token and that its user is still active.
func (s *UserService) Authenticate(ctx context.Context, token string) (*model.SystemUser, error) {
	claims, err := auth.ParseToken(token, []byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return u, nil
}

type CreateStaffRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

// CreateStaff adds an hr or scanner account with the default password. The
// user must change it on first login.
func (s *UserService) CreateStaff(ctx context.Context, req *CreateStaffRequest, createdBy string) (*model.SystemUser, error) {
	if req.Role != model.RoleHR && req.Role != model.RoleScanner {
		return nil, ErrInvalidRole
	}
	return s.create(ctx, req.Email, req.FirstName, req.LastName, req.Role, s.cfg.Auth.DefaultPassword, true, createdBy)
}

func (s *UserService) create(ctx context.Context, email, first, last, role, password string, mustChange bool, createdBy string) (*model.SystemUser, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.SystemUser{
		ID:                 uuid.NewString(),
		Email:              model.NormalizeEmail(email),
		FirstName:          strings.TrimSpace(first),
		LastName:           strings.TrimSpace(last),
		Role:               role,
		PasswordHash:       hash,
		IsActive:           true,
		MustChangePassword: mustChange,
		CreatedBy:          createdBy,
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.log.Info(ctx, "staff user created", "user_id", u.ID, "role", u.Role, "created_by", createdBy)
	return u, nil
}

func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.log.Info(ctx, "staff user status changed", "user_id", id, "active", active)
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, id, hash, false)
}

func (s *UserService) Get(ctx context.Context, id string) (*model.SystemUser, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]*model.SystemUser, error) {
	return s.userRepo.List(ctx)
}

// SeedSuperAdmin creates the configured superadmin on first start. It does
// nothing when no email is configured or the account already exists.
func (s *UserService) SeedSuperAdmin(ctx context.Context) error {
	email := s.cfg.Auth.SuperAdminEmail
	if email == "" {
		return nil
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	password := s.cfg.Auth.SuperAdminPassword
	if password == "" {
		password = s.cfg.Auth.DefaultPassword
	}
	_, err := s.create(ctx, email, "Super", "Admin", model.RoleSuperAdmin, password, true, "")
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}
