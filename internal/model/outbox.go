package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventTypeRedemption = "token.redeemed"
)

// OutboxMessage is an event written in the same database transaction as the
// change it describes, then delivered to Kafka by the outbox sender.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(128);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// RedemptionEvent is the payload published for each successful redemption.
type RedemptionEvent struct {
	TransactionID string    `json:"transaction_id"`
	EmployeeID    string    `json:"employee_id"`
	CodeID        string    `json:"code_id"`
	ScannerID     string    `json:"scanner_id"`
	TokensBefore  int64     `json:"tokens_before"`
	TokensAfter   int64     `json:"tokens_after"`
	RedeemedAt    time.Time `json:"redeemed_at"`
}

// AllModels lists every table the service migrates.
func AllModels() []any {
	return []any{
		&Employee{},
		&RedemptionCode{},
		&TokenTransaction{},
		&SystemUser{},
		&OutboxMessage{},
	}
}
