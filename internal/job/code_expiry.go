package job

import (
	"context"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/logging"
	"gomonate/internal/repository"

	"gorm.io/gorm"
)

// CodeExpiryJob deactivates active codes whose expires_at has passed.
// Codes issued without a validity never expire.
type CodeExpiryJob struct {
	codeRepo  *repository.CodeRepository
	log       logging.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewCodeExpiryJob(db *gorm.DB, cfg *config.Config, log logging.Logger) *CodeExpiryJob {
	interval := cfg.Business.CodeExpiryInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &CodeExpiryJob{
		codeRepo:  repository.NewCodeRepository(db),
		log:       log.With("job", "code_expiry"),
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
		now:       time.Now,
	}
}

func (j *CodeExpiryJob) Start(ctx context.Context) {
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
			j.DeactivateExpired(ctx)
		}
	}
}

func (j *CodeExpiryJob) Stop() {
	close(j.stopCh)
}

// DeactivateExpired switches off one batch of expired codes and returns how
// many it changed.
func (j *CodeExpiryJob) DeactivateExpired(ctx context.Context) int {
	now := j.now()
	codes, err := j.codeRepo.ListExpired(ctx, now, j.batchSize)
	if err != nil {
		j.log.Error(ctx, "load expired codes", "error", err)
		return 0
	}
	if len(codes) == 0 {
		return 0
	}

	closed := 0
	for _, code := range codes {
		changed, err := j.codeRepo.Deactivate(ctx, nil, code.CodeID, now)
		if err != nil {
			j.log.Error(ctx, "deactivate expired code", "code_id", code.CodeID, "error", err)
			continue
		}
		if changed {
			closed++
			j.log.Debug(ctx, "code expired", "code_id", code.CodeID, "employee_id", code.EmployeeID)
		}
	}

	j.log.Info(ctx, "expired codes deactivated", "found", len(codes), "deactivated", closed)
	return closed
}
