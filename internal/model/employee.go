package model

import (
	"strings"
	"time"
)

const (
	RegistrationStatusPending      = "pending"
	RegistrationStatusCodeAssigned = "code_assigned"
	RegistrationStatusRegistered   = "registered"
)

// Employee is one event participant and the owner of a token balance.
//
// TokenBalance only decreases through a redemption. Version is the optimistic
// lock column every balance write compares against.
type Employee struct {
	EmployeeID         string    `gorm:"type:varchar(64);primaryKey" json:"employee_id"`
	FirstName          string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName           string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Email              string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	MobileNumber       string    `gorm:"type:varchar(32)" json:"mobile_number"`
	RegistrationStatus string    `gorm:"type:varchar(20);index;not null" json:"registration_status"`
	TokenAllocation    int64     `gorm:"not null" json:"token_allocation"`
	TokenBalance       int64     `gorm:"not null" json:"token_balance"`
	Version            int       `gorm:"not null;default:0" json:"version"`
	CurrentCodeID      string    `gorm:"type:varchar(64)" json:"current_code_id,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Employee) TableName() string {
	return "employee"
}

// NewEmployee builds a pending employee holding the full allocation.
func NewEmployee(id, firstName, lastName, email, mobile string, allocation int64) (*Employee, error) {
	e := &Employee{
		EmployeeID:         id,
		FirstName:          strings.TrimSpace(firstName),
		LastName:           strings.TrimSpace(lastName),
		Email:              NormalizeEmail(email),
		MobileNumber:       strings.TrimSpace(mobile),
		RegistrationStatus: RegistrationStatusPending,
		TokenAllocation:    allocation,
		TokenBalance:       allocation,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the fields every stored employee must carry.
func (e *Employee) Validate() error {
	switch {
	case e.EmployeeID == "":
		return integrityError("employee", "employee_id is empty")
	case e.FirstName == "" || e.LastName == "":
		return integrityError("employee", "%s: name is incomplete", e.EmployeeID)
	case !strings.Contains(e.Email, "@"):
		return integrityError("employee", "%s: invalid email %q", e.EmployeeID, e.Email)
	case e.TokenBalance < 0:
		return integrityError("employee", "%s: negative token balance %d", e.EmployeeID, e.TokenBalance)
	case e.TokenAllocation <= 0:
		return integrityError("employee", "%s: allocation must be positive", e.EmployeeID)
	}
	switch e.RegistrationStatus {
	case RegistrationStatusPending, RegistrationStatusCodeAssigned, RegistrationStatusRegistered:
	default:
		return integrityError("employee", "%s: unknown registration status %q", e.EmployeeID, e.RegistrationStatus)
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
