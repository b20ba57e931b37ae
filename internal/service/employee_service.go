package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"
	"gomonate/pkg/idgen"

	"gorm.io/gorm"
)

const walletHistoryLimit = 10

type EmployeeService struct {
	cfg             *config.Config
	log             logging.Logger
	employeeRepo    *repository.EmployeeRepository
	codeRepo        *repository.CodeRepository
	transactionRepo *repository.TransactionRepository
}

func NewEmployeeService(db *gorm.DB, cfg *config.Config, log logging.Logger) *EmployeeService {
	return &EmployeeService{
		cfg:             cfg,
		log:             log.With("component", "employees"),
		employeeRepo:    repository.NewEmployeeRepository(db),
		codeRepo:        repository.NewCodeRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type CreateEmployeeRequest struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	MobileNumber string `json:"mobile_number"`
}

// Create registers a pending employee holding the event's full allocation.
func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*model.Employee, error) {
	e, err := model.NewEmployee(idgen.GenerateEmployeeID(), req.FirstName, req.LastName, req.Email, req.MobileNumber, s.cfg.Event.TokenAllocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := s.employeeRepo.GetByEmail(ctx, e.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmployeeExists
	}

	// a concurrent create can still win the race; the unique index catches it
	if err := s.employeeRepo.Create(ctx, nil, e); err != nil {
		if errors.Is(err, repository.ErrEmployeeExists) {
			return nil, ErrEmployeeExists
		}
		return nil, err
	}

	s.log.Info(ctx, "employee created", "employee_id", e.EmployeeID, "email", e.Email)
	return e, nil
}

type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// csv header names accepted for each column
var importColumns = map[string][]string{
	"first_name":    {"firstname", "first_name", "first name"},
	"last_name":     {"lastname", "last_name", "last name"},
	"email":         {"email", "email address"},
	"mobile_number": {"mobilenumber", "mobile_number", "mobile", "mobile number", "phone"},
}

// ImportCSV creates one employee per data row. The first row must be a
// header naming at least the firstName, lastName and email columns. Rows
// whose email is already on file (or repeated in the file) are skipped;
// rows missing a required value are counted as failed.
func (s *EmployeeService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCSV, err)
	}
	cols, err := mapImportColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := make(map[string]struct{})
	line := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Total++
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		result.Total++

		req := &CreateEmployeeRequest{
			FirstName:    field(record, cols, "first_name"),
			LastName:     field(record, cols, "last_name"),
			Email:        model.NormalizeEmail(field(record, cols, "email")),
			MobileNumber: field(record, cols, "mobile_number"),
		}
		if req.FirstName == "" || req.LastName == "" || req.Email == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: first name, last name and email are required", line))
			continue
		}
		if _, dup := seen[req.Email]; dup {
			result.Skipped++
			continue
		}
		seen[req.Email] = struct{}{}

		_, err = s.Create(ctx, req)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, ErrEmployeeExists):
			result.Skipped++
		case errors.Is(err, ErrInvalidInput):
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
		default:
			return result, fmt.Errorf("import line %d: %w", line, err)
		}
	}

	s.log.Info(ctx, "employee import finished",
		"total", result.Total,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func mapImportColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for key, aliases := range importColumns {
			for _, alias := range aliases {
				if name == alias {
					cols[key] = i
				}
			}
		}
	}
	for _, required := range []string{"first_name", "last_name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: header is missing column %s", ErrInvalidCSV, required)
		}
	}
	return cols, nil
}

func field(record []string, cols map[string]int, key string) string {
	i, ok := cols[key]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (s *EmployeeService) List(ctx context.Context, search string, page, pageSize int) ([]*model.Employee, int64, error) {
	return s.employeeRepo.List(ctx, strings.TrimSpace(search), page, pageSize)
}

type EmployeeDetail struct {
	Employee     *model.Employee           `json:"employee"`
	Codes        []*model.RedemptionCode   `json:"codes"`
	Transactions []*model.TokenTransaction `json:"transactions"`
}

func (s *EmployeeService) Get(ctx context.Context, employeeID string) (*EmployeeDetail, error) {
	e, err := s.employeeRepo.GetByID(ctx, nil, employeeID)
	if err != nil {
		return nil, err
	}
	codes, err := s.codeRepo.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	txns, err := s.transactionRepo.ListByEmployee(ctx, employeeID, walletHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &EmployeeDetail{Employee: e, Codes: codes, Transactions: txns}, nil
}

type Wallet struct {
	EmployeeID         string                    `json:"employee_id"`
	FirstName          string                    `json:"first_name"`
	LastName           string                    `json:"last_name"`
	RegistrationStatus string                    `json:"registration_status"`
	TokenAllocation    int64                     `json:"token_allocation"`
	TokenBalance       int64                     `json:"token_balance"`
	Redeemed           int64                     `json:"redeemed"`
	CodeActive         bool                      `json:"code_active"`
	Transactions       []*model.TokenTransaction `json:"transactions"`
}

// Wallet is the employee's own view of a code: balance plus the ten most
// recent redemptions. Deactivated codes still show their history.
func (s *EmployeeService) Wallet(ctx context.Context, codeInput string) (*Wallet, error) {
	code, err := resolveCode(ctx, nil, s.codeRepo, codeInput)
	if err != nil {
		return nil, err
	}

	e, err := s.employeeRepo.GetByID(ctx, nil, code.EmployeeID)
	if err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			s.log.Error(ctx, "wallet code without employee", "kind", logging.KindIntegrity, "code_id", code.CodeID)
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}

	txns, err := s.transactionRepo.ListByEmployee(ctx, e.EmployeeID, walletHistoryLimit)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		EmployeeID:         e.EmployeeID,
		FirstName:          e.FirstName,
		LastName:           e.LastName,
		RegistrationStatus: e.RegistrationStatus,
		TokenAllocation:    e.TokenAllocation,
		TokenBalance:       e.TokenBalance,
		Redeemed:           e.TokenAllocation - e.TokenBalance,
		CodeActive:         code.IsActive,
		Transactions:       txns,
	}, nil
}
