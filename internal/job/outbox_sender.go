package job

import (
	"context"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/infrastructure/mq"
	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender delivers pending outbox rows to Kafka. A row that keeps
// failing is parked as FAILED after business.max_retry_count attempts.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	log        logging.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, log logging.Logger) *OutboxSender {
	interval := cfg.Business.OutboxInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		log:        log.With("job", "outbox_sender"),
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info(ctx, "job started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "context done, job exiting")
			return
		case <-s.stopCh:
			s.log.Info(ctx, "job stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending sends one batch and returns how many rows were delivered.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error(ctx, "load pending messages", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outboxRepo.MarkAsSent(ctx, msg.ID); err != nil {
			// the row will be sent again; consumers dedupe on transaction_id
			s.log.Error(ctx, "mark message sent", "id", msg.ID, "error", err)
			return false
		}
		s.log.Debug(ctx, "message sent", "id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)
		return true
	}

	giveUp := msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount
	s.log.Warn(ctx, "send message", "id", msg.ID, "retry", msg.RetryCount+1, "give_up", giveUp, "error", err)

	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, giveUp); err != nil {
		s.log.Error(ctx, "record send failure", "id", msg.ID, "error", err)
	}
	return false
}
