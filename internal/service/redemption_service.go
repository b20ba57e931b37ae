package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"
	"gomonate/pkg/idgen"

	"gorm.io/gorm"
)

// RedemptionService turns a presented code into one committed token
// decrement plus its audit record, or rejects it with nothing written.
type RedemptionService struct {
	db              *gorm.DB
	cfg             *config.Config
	log             logging.Logger
	codeRepo        *repository.CodeRepository
	employeeRepo    *repository.EmployeeRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewRedemptionService(db *gorm.DB, cfg *config.Config, log logging.Logger) *RedemptionService {
	return &RedemptionService{
		db:              db,
		cfg:             cfg,
		log:             log.With("component", "redemption"),
		codeRepo:        repository.NewCodeRepository(db),
		employeeRepo:    repository.NewEmployeeRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type RedeemResult struct {
	TransactionID string `json:"transaction_id"`
	EmployeeID    string `json:"employee_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	NewBalance    int64  `json:"new_balance"`
}

// Redeem takes one token from the employee the code belongs to.
//
// The code lookup, balance check, decrement and audit insert run in a single
// database transaction. The decrement is conditional on the version read in
// that transaction; when another redemption got there first the transaction
// is rolled back and run again, up to redemption.max_attempts times.
//
// Redeem is not idempotent: two calls with the same code take two tokens.
func (s *RedemptionService) Redeem(ctx context.Context, codeInput, scannerID string) (*RedeemResult, error) {
	codeInput = strings.TrimSpace(codeInput)
	if codeInput == "" {
		return nil, ErrInvalidCode
	}
	if scannerID == "" {
		return nil, ErrScannerRequired
	}

	maxAttempts := s.cfg.Redemption.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result *RedeemResult
		err    error
	)
	for attempt := 1; ; attempt++ {
		result, err = s.redeemOnce(ctx, codeInput, scannerID)
		if err == nil || !isRetryable(err) || attempt >= maxAttempts {
			break
		}
		s.log.Debug(ctx, "redemption conflict, retrying", "code", codeInput, "attempt", attempt, "error", err)
		if werr := s.backoff(ctx, attempt); werr != nil {
			err = werr
			break
		}
	}

	if err != nil {
		return nil, s.classify(ctx, codeInput, scannerID, err)
	}

	s.log.Info(ctx, "token redeemed",
		"transaction_id", result.TransactionID,
		"employee_id", result.EmployeeID,
		"scanner_id", scannerID,
		"balance", result.NewBalance,
	)
	return result, nil
}

func (s *RedemptionService) redeemOnce(ctx context.Context, codeInput, scannerID string) (*RedeemResult, error) {
	var result *RedeemResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := resolveCode(ctx, tx, s.codeRepo, codeInput)
		if err != nil {
			return err
		}
		if !code.IsActive {
			return ErrInactiveCode
		}

		employee, err := s.employeeRepo.GetByID(ctx, tx, code.EmployeeID)
		if err != nil {
			if errors.Is(err, repository.ErrEmployeeNotFound) {
				return fmt.Errorf("%w: code %s references %s", ErrEmployeeNotFound, code.CodeID, code.EmployeeID)
			}
			return err
		}
		if err := employee.Validate(); err != nil {
			return err
		}
		if employee.TokenBalance <= 0 {
			return &InsufficientBalanceError{Balance: employee.TokenBalance}
		}

		record, err := model.NewRedemption(idgen.GenerateTransactionNo(), employee.EmployeeID, code.CodeID, scannerID, employee.TokenBalance)
		if err != nil {
			return err
		}

		if err := s.employeeRepo.DeductToken(ctx, tx, employee.EmployeeID, record.Amount, employee.Version); err != nil {
			// The balance read above was positive, so a failed condition means
			// another writer moved the row. A fresh attempt reports the real state.
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return repository.ErrOptimisticLock
			}
			return fmt.Errorf("deduct token: %w", err)
		}

		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		if s.cfg.Kafka.Enabled {
			if err := s.enqueueEvent(ctx, tx, record); err != nil {
				return err
			}
		}

		result = &RedeemResult{
			TransactionID: record.TransactionID,
			EmployeeID:    employee.EmployeeID,
			FirstName:     employee.FirstName,
			LastName:      employee.LastName,
			NewBalance:    record.TokensAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedemptionService) enqueueEvent(ctx context.Context, tx *gorm.DB, record *model.TokenTransaction) error {
	payload, err := json.Marshal(model.RedemptionEvent{
		TransactionID: record.TransactionID,
		EmployeeID:    record.EmployeeID,
		CodeID:        record.CodeID,
		ScannerID:     record.ScannerID,
		TokensBefore:  record.TokensBefore,
		TokensAfter:   record.TokensAfter,
		RedeemedAt:    record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode redemption event: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: record.EmployeeID,
		EventType:  model.EventTypeRedemption,
		Topic:      s.cfg.Kafka.Topic.Redemption,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

func (s *RedemptionService) backoff(ctx context.Context, attempt int) error {
	wait := s.cfg.Redemption.RetryBackoff * time.Duration(attempt)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify maps a failed attempt onto the redemption error set and logs it
// at the level its class deserves.
func (s *RedemptionService) classify(ctx context.Context, codeInput, scannerID string, err error) error {
	log := s.log.With("code", codeInput, "scanner_id", scannerID)

	var insufficient *InsufficientBalanceError
	switch {
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInactiveCode):
		log.Info(ctx, "redemption rejected", "reason", err.Error())
		return err
	case errors.As(err, &insufficient):
		log.Info(ctx, "redemption rejected", "reason", "insufficient balance", "balance", insufficient.Balance)
		return err
	case errors.Is(err, ErrEmployeeNotFound), errors.Is(err, model.ErrDataIntegrity):
		log.Error(ctx, "redemption hit inconsistent data", "kind", logging.KindIntegrity, "error", err)
		return err
	case isContextErr(err):
		log.Warn(ctx, "redemption aborted", "error", err)
		return unavailable(err)
	case isRetryable(err):
		log.Warn(ctx, "redemption conflict not resolved", "error", err)
		return fmt.Errorf("%w: %v", ErrTransientConflict, err)
	default:
		log.Error(ctx, "redemption store failure", "error", err)
		return unavailable(err)
	}
}
