package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/infrastructure/cache"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"gorm.io/gorm"
)

const (
	dashboardCacheKey = "dashboard"
	exportBatchSize   = 500
)

// Archiver stores report files. storage.S3Archiver implements it.
type Archiver interface {
	ObjectKey(name string) string
	Upload(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type ReportService struct {
	cfg             *config.Config
	log             logging.Logger
	cache           *cache.JSONCache
	archiver        Archiver
	employeeRepo    *repository.EmployeeRepository
	transactionRepo *repository.TransactionRepository
	userRepo        *repository.UserRepository
}

// NewReportService builds the service. A nil cache or archiver disables
// caching or archiving respectively.
func NewReportService(db *gorm.DB, statsCache *cache.JSONCache, archiver Archiver, cfg *config.Config, log logging.Logger) *ReportService {
	return &ReportService{
		cfg:             cfg,
		log:             log.With("component", "reports"),
		cache:           statsCache,
		archiver:        archiver,
		employeeRepo:    repository.NewEmployeeRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		userRepo:        repository.NewUserRepository(db),
	}
}

type DashboardStats struct {
	TotalEmployees      int64     `json:"total_employees"`
	RegisteredEmployees int64     `json:"registered_employees"`
	ActiveHR            int64     `json:"active_hr"`
	ActiveScanners      int64     `json:"active_scanners"`
	TotalRedemptions    int64     `json:"total_redemptions"`
	TokensRemaining     int64     `json:"tokens_remaining"`
	GeneratedAt         time.Time `json:"generated_at"`
}

func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &stats)
		if err != nil {
			s.log.Warn(ctx, "read dashboard cache", "error", err)
		} else if hit {
			return &stats, nil
		}
	}

	var err error
	if stats.TotalEmployees, err = s.employeeRepo.Count(ctx); err != nil {
		return nil, err
	}
	if stats.RegisteredEmployees, err = s.employeeRepo.CountByStatus(ctx, model.RegistrationStatusRegistered); err != nil {
		return nil, err
	}
	if stats.ActiveHR, err = s.userRepo.CountActiveByRole(ctx, model.RoleHR); err != nil {
		return nil, err
	}
	if stats.ActiveScanners, err = s.userRepo.CountActiveByRole(ctx, model.RoleScanner); err != nil {
		return nil, err
	}
	if stats.TotalRedemptions, err = s.transactionRepo.CountByType(ctx, model.TransactionTypeRedemption); err != nil {
		return nil, err
	}
	if stats.TokensRemaining, err = s.employeeRepo.SumBalance(ctx); err != nil {
		return nil, err
	}
	stats.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, &stats, s.cfg.Report.StatsTTL); err != nil {
			s.log.Warn(ctx, "write dashboard cache", "error", err)
		}
	}
	return &stats, nil
}

func (s *ReportService) Transactions(ctx context.Context, f repository.TransactionFilter, page, pageSize int) ([]*model.TokenTransaction, int64, error) {
	return s.transactionRepo.List(ctx, f, page, pageSize)
}

var exportHeader = []string{"lastName", "firstName", "email", "status", "allocation", "balance", "redeemed"}

// ExportEmployeesCSV writes every employee, in id order, with the number of
// tokens the audit trail says they redeemed.
func (s *ReportService) ExportEmployeesCSV(ctx context.Context, w io.Writer) (int, error) {
	redeemed, err := s.transactionRepo.RedeemedByEmployee(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}

	rows := 0
	after := ""
	for {
		batch, err := s.employeeRepo.ListAfter(ctx, after, exportBatchSize)
		if err != nil {
			return rows, err
		}
		for _, e := range batch {
			record := []string{
				e.LastName,
				e.FirstName,
				e.Email,
				e.RegistrationStatus,
				strconv.FormatInt(e.TokenAllocation, 10),
				strconv.FormatInt(e.TokenBalance, 10),
				strconv.FormatInt(redeemed[e.EmployeeID], 10),
			}
			if err := cw.Write(record); err != nil {
				return rows, err
			}
			rows++
		}
		if len(batch) < exportBatchSize {
			break
		}
		after = batch[len(batch)-1].EmployeeID
	}

	cw.Flush()
	return rows, cw.Error()
}

type ArchiveResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

// Archive uploads the employee export to object storage and returns a
// presigned link to it.
func (s *ReportService) Archive(ctx context.Context) (*ArchiveResult, error) {
	if s.archiver == nil {
		return nil, ErrArchiveDisabled
	}

	var buf bytes.Buffer
	rows, err := s.ExportEmployeesCSV(ctx, &buf)
	if err != nil {
		return nil, fmt.Errorf("build export: %w", err)
	}

	key := s.archiver.ObjectKey(fmt.Sprintf("employees-%s.csv", time.Now().UTC().Format("20060102T150405Z")))
	if err := s.archiver.Upload(ctx, key, "text/csv", buf.Bytes()); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	link, err := s.archiver.PresignGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	s.log.Info(ctx, "employee report archived", "key", key, "rows", rows)
	return &ArchiveResult{Key: key, URL: link, Rows: rows}, nil
}
