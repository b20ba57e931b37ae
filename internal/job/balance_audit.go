package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/repository"

	"gorm.io/gorm"
)

const auditBatchSize = 200

// Discrepancy is one employee whose balance disagrees with the audit trail.
type Discrepancy struct {
	EmployeeID  string
	Balance     int64
	Allocation  int64
	Redeemed    int64
	LatestAfter *int64
}

// BalanceAuditJob cross-checks every balance against the transaction log:
// the balance must equal the newest tokens_after, and allocation minus the
// tokens redeemed. Mismatches are reported as integrity faults; nothing is
// repaired.
type BalanceAuditJob struct {
	db              *gorm.DB
	employeeRepo    *repository.EmployeeRepository
	transactionRepo *repository.TransactionRepository
	log             logging.Logger
	stopCh          chan struct{}
	interval        time.Duration
}

func NewBalanceAuditJob(db *gorm.DB, cfg *config.Config, log logging.Logger) *BalanceAuditJob {
	interval := cfg.Business.AuditInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BalanceAuditJob{
		db:              db,
		employeeRepo:    repository.NewEmployeeRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		log:             log.With("job", "balance_audit"),
		stopCh:          make(chan struct{}),
		interval:        interval,
	}
}

func (j *BalanceAuditJob) Start(ctx context.Context) {
	j.log.Info(ctx, "job started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info(ctx, "context done, job exiting")
			return
		case <-j.stopCh:
			j.log.Info(ctx, "job stopped")
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.log.Error(ctx, "balance audit failed", "error", err)
			}
		}
	}
}

func (j *BalanceAuditJob) Stop() {
	close(j.stopCh)
}

// Run audits all employees once.
func (j *BalanceAuditJob) Run(ctx context.Context) ([]Discrepancy, error) {
	var found []Discrepancy
	checked := 0
	after := ""
	for {
		batch, err := j.employeeRepo.ListAfter(ctx, after, auditBatchSize)
		if err != nil {
			return found, err
		}
		for _, e := range batch {
			d, ok, err := j.check(ctx, e.EmployeeID)
			if errors.Is(err, repository.ErrEmployeeNotFound) {
				continue
			}
			if err != nil {
				return found, err
			}
			checked++
			if ok {
				continue
			}

			found = append(found, d)
			args := []any{
				"kind", logging.KindIntegrity,
				"employee_id", d.EmployeeID,
				"balance", d.Balance,
				"allocation", d.Allocation,
				"redeemed", d.Redeemed,
			}
			if d.LatestAfter != nil {
				args = append(args, "latest_tokens_after", *d.LatestAfter)
			}
			j.log.Error(ctx, "balance does not match transaction log", args...)
		}
		if len(batch) < auditBatchSize {
			break
		}
		after = batch[len(batch)-1].EmployeeID
	}

	j.log.Info(ctx, "balance audit finished", "checked", checked, "discrepancies", len(found))
	return found, nil
}

// check reads the employee row, its redeemed total and its newest audit row
// in one read transaction, so a redemption committing while the audit runs
// is seen either entirely or not at all.
func (j *BalanceAuditJob) check(ctx context.Context, employeeID string) (Discrepancy, bool, error) {
	var d Discrepancy
	ok := true

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := j.employeeRepo.GetByID(ctx, tx, employeeID)
		if err != nil {
			return err
		}
		redeemed, err := j.transactionRepo.SumAmountByEmployee(ctx, tx, employeeID)
		if err != nil {
			return err
		}
		latest, err := j.transactionRepo.GetLatestByEmployee(ctx, tx, employeeID)
		if err != nil {
			return err
		}

		d = Discrepancy{
			EmployeeID: e.EmployeeID,
			Balance:    e.TokenBalance,
			Allocation: e.TokenAllocation,
			Redeemed:   redeemed,
		}
		ok = e.TokenBalance == e.TokenAllocation-redeemed
		if latest != nil {
			d.LatestAfter = &latest.TokensAfter
			ok = ok && latest.TokensAfter == e.TokenBalance
		}
		return nil
	}, snapshotTxOptions(j.db))

	return d, ok, err
}

// snapshotTxOptions asks for repeatable read so every statement of a check
// sees the same commit. SQLite transactions are serializable already.
func snapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
