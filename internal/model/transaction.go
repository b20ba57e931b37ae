package model

import (
	"time"
)

const (
	TransactionTypeRedemption = "redemption"
)

// TokenTransaction is the append-only audit row written with every balance
// change. It is never updated or deleted.
//
// TokensAfter always equals TokensBefore - Amount, and equals the employee's
// balance at the moment the same database transaction committed.
type TokenTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`
	EmployeeID    string    `gorm:"type:varchar(64);index;not null" json:"employee_id"`
	CodeID        string    `gorm:"type:varchar(64);index;not null" json:"code_id"`
	ScannerID     string    `gorm:"type:varchar(64);index;not null" json:"scanner_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	TokensBefore  int64     `gorm:"not null" json:"tokens_before"`
	TokensAfter   int64     `gorm:"not null" json:"tokens_after"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (TokenTransaction) TableName() string {
	return "token_transaction"
}

// NewRedemption builds the audit row for one token taken from balanceBefore.
func NewRedemption(txnID, employeeID, codeID, scannerID string, balanceBefore int64) (*TokenTransaction, error) {
	t := &TokenTransaction{
		TransactionID: txnID,
		EmployeeID:    employeeID,
		CodeID:        codeID,
		ScannerID:     scannerID,
		Amount:        1,
		TokensBefore:  balanceBefore,
		TokensAfter:   balanceBefore - 1,
		Type:          TransactionTypeRedemption,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TokenTransaction) Validate() error {
	switch {
	case t.TransactionID == "":
		return integrityError("token_transaction", "transaction_id is empty")
	case t.EmployeeID == "" || t.CodeID == "":
		return integrityError("token_transaction", "%s: employee_id and code_id are required", t.TransactionID)
	case t.ScannerID == "":
		return integrityError("token_transaction", "%s: scanner identity is required", t.TransactionID)
	case t.Amount <= 0:
		return integrityError("token_transaction", "%s: amount must be positive", t.TransactionID)
	case t.TokensAfter != t.TokensBefore-t.Amount:
		return integrityError("token_transaction", "%s: tokens_after %d != tokens_before %d - amount %d",
			t.TransactionID, t.TokensAfter, t.TokensBefore, t.Amount)
	case t.TokensAfter < 0:
		return integrityError("token_transaction", "%s: tokens_after is negative", t.TransactionID)
	}
	return nil
}
