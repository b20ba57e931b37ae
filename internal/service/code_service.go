package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/infrastructure/lock"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"
	"gomonate/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const shortCodeAttempts = 10

// CodeService issues redemption codes and handles employee self-registration.
type CodeService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cfg          *config.Config
	log          logging.Logger
	codeRepo     *repository.CodeRepository
	employeeRepo *repository.EmployeeRepository
}

// NewCodeService builds the service. redisClient may be nil, in which case
// assignment relies on the database transaction alone.
func NewCodeService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logging.Logger) *CodeService {
	return &CodeService{
		db:           db,
		redisClient:  redisClient,
		cfg:          cfg,
		log:          log.With("component", "codes"),
		codeRepo:     repository.NewCodeRepository(db),
		employeeRepo: repository.NewEmployeeRepository(db),
	}
}

// Assign issues a new code to the employee. Every code the employee held
// before is deactivated in the same transaction, so at most one code per
// employee is active after any reassignment. The token balance is untouched.
func (s *CodeService) Assign(ctx context.Context, employeeID, assignedBy string) (*model.RedemptionCode, error) {
	if s.redisClient != nil {
		assignLock := lock.NewAssignLock(s.redisClient, employeeID)
		if err := assignLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBusy, err)
		}
		defer func() {
			if err := assignLock.Unlock(context.Background()); err != nil {
				s.log.Warn(ctx, "release assign lock", "employee_id", employeeID, "error", err)
			}
		}()
	}

	var code *model.RedemptionCode
	var deactivated int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the row lock serializes assignments for one employee when no
		// redis lock is available
		employee, err := s.employeeRepo.GetByIDForUpdate(ctx, tx, employeeID)
		if err != nil {
			return err
		}

		now := time.Now()
		deactivated, err = s.codeRepo.DeactivateForEmployee(ctx, tx, employee.EmployeeID, now)
		if err != nil {
			return fmt.Errorf("deactivate previous codes: %w", err)
		}

		if code, err = s.createCode(ctx, tx, employee.EmployeeID, assignedBy, now); err != nil {
			return err
		}

		return s.employeeRepo.MarkCodeAssigned(ctx, tx, employee.EmployeeID, code.CodeID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("assign code: %w", err)
	}

	s.log.Info(ctx, "code assigned",
		"employee_id", employeeID,
		"code_id", code.CodeID,
		"assigned_by", assignedBy,
		"deactivated", deactivated,
	)
	return code, nil
}

// createCode inserts a fresh code under a savepoint. A concurrent assignment
// may take the short code between the check and the insert; the unique index
// rejects that and a new candidate is tried.
func (s *CodeService) createCode(ctx context.Context, tx *gorm.DB, employeeID, assignedBy string, now time.Time) (*model.RedemptionCode, error) {
	for i := 0; i < shortCodeAttempts; i++ {
		shortCode, err := s.freeShortCode(ctx, tx)
		if err != nil {
			return nil, err
		}
		code, err := model.NewRedemptionCode(idgen.GenerateCodeID(), shortCode, employeeID, assignedBy, now, s.cfg.Event.CodeValidity)
		if err != nil {
			return nil, err
		}

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.codeRepo.Create(ctx, sp, code)
		})
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeConflict) {
			return nil, fmt.Errorf("create code: %w", err)
		}
		s.log.Warn(ctx, "code collided on insert, retrying", "employee_id", employeeID, "short_code", shortCode)
	}
	return nil, ErrShortCodeExhausted
}

func (s *CodeService) freeShortCode(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < shortCodeAttempts; i++ {
		candidate, err := idgen.GenerateShortCode(s.cfg.Event.ShortCodeLength)
		if err != nil {
			return "", err
		}
		inUse, err := s.codeRepo.ShortCodeInUse(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", ErrShortCodeExhausted
}

type RegistrationResult struct {
	Employee          *model.Employee       `json:"employee"`
	Code              *model.RedemptionCode `json:"code"`
	AlreadyRegistered bool                  `json:"already_registered"`
}

// Register records an employee claiming their code on a device. Registering
// an already registered code succeeds without changing anything.
func (s *CodeService) Register(ctx context.Context, codeInput, deviceID string) (*RegistrationResult, error) {
	result := &RegistrationResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := resolveCode(ctx, tx, s.codeRepo, codeInput)
		if err != nil {
			return err
		}
		if !code.IsActive {
			return ErrInactiveCode
		}

		first, err := s.codeRepo.MarkRegistered(ctx, tx, code.CodeID, deviceID, time.Now())
		if err != nil {
			return fmt.Errorf("mark code registered: %w", err)
		}
		result.AlreadyRegistered = !first

		if first {
			if err := s.employeeRepo.MarkRegistered(ctx, tx, code.EmployeeID); err != nil {
				if errors.Is(err, repository.ErrEmployeeNotFound) {
					return ErrEmployeeNotFound
				}
				return err
			}
		}

		if result.Code, err = s.codeRepo.GetByCodeID(ctx, tx, code.CodeID); err != nil {
			return err
		}
		result.Employee, err = s.employeeRepo.GetByID(ctx, tx, code.EmployeeID)
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return ErrEmployeeNotFound
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			s.log.Error(ctx, "registration code without employee", "kind", logging.KindIntegrity, "code", codeInput)
		}
		return nil, err
	}

	if !result.AlreadyRegistered {
		s.log.Info(ctx, "employee registered", "employee_id", result.Employee.EmployeeID, "code_id", result.Code.CodeID)
	}
	return result, nil
}

// RegistrationURL is the link encoded into a code's QR image.
func (s *CodeService) RegistrationURL(codeID string) string {
	return s.cfg.Event.RegistrationBaseURL + "?code=" + url.QueryEscape(codeID)
}

// QRCode renders the registration link of an existing code as a PNG.
func (s *CodeService) QRCode(ctx context.Context, codeID string, size int) ([]byte, error) {
	code, err := s.codeRepo.GetByCodeID(ctx, nil, codeID)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if size < 64 || size > 1024 {
		size = 256
	}
	return qrcode.Encode(s.RegistrationURL(code.CodeID), qrcode.Medium, size)
}

// ListForEmployee returns every code ever issued to the employee, newest first.
func (s *CodeService) ListForEmployee(ctx context.Context, employeeID string) ([]*model.RedemptionCode, error) {
	return s.codeRepo.ListByEmployee(ctx, employeeID)
}
