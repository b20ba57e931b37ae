package model

import (
	"strings"
	"time"
)

// RedemptionCode is an issued credential: the opaque CodeID printed in the QR
// image plus a ShortCode an operator can type. Codes are never deleted, only
// deactivated.
type RedemptionCode struct {
	CodeID             string     `gorm:"type:varchar(64);primaryKey" json:"code_id"`
	ShortCode          string     `gorm:"type:varchar(16);index;not null" json:"short_code"`
	EmployeeID         string     `gorm:"type:varchar(64);index;not null" json:"employee_id"`
	IsActive           bool       `gorm:"index;not null" json:"is_active"`
	ActiveShortCode    *string    `gorm:"type:varchar(16);uniqueIndex" json:"-"`
	IsRegistered       bool       `gorm:"not null" json:"is_registered"`
	RegisteredAt       *time.Time `json:"registered_at"`
	RegisteredDeviceID *string    `gorm:"type:varchar(128)" json:"registered_device_id"`
	AssignedBy         string     `gorm:"type:varchar(64)" json:"assigned_by"`
	AssignedAt         time.Time  `gorm:"not null" json:"assigned_at"`
	ExpiresAt          *time.Time `gorm:"index" json:"expires_at"`
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RedemptionCode) TableName() string {
	return "redemption_code"
}

// SyncActiveShortCode sets ActiveShortCode from IsActive. The column is NULL
// for inactive codes, so its unique index only constrains active ones.
func (c *RedemptionCode) SyncActiveShortCode() {
	if !c.IsActive {
		c.ActiveShortCode = nil
		return
	}
	sc := c.ShortCode
	c.ActiveShortCode = &sc
}

// NewRedemptionCode builds an active, unregistered code for employeeID.
// A zero validity means the code never expires.
func NewRedemptionCode(codeID, shortCode, employeeID, assignedBy string, now time.Time, validity time.Duration) (*RedemptionCode, error) {
	c := &RedemptionCode{
		CodeID:     codeID,
		ShortCode:  strings.ToUpper(shortCode),
		EmployeeID: employeeID,
		IsActive:   true,
		AssignedBy: assignedBy,
		AssignedAt: now,
	}
	if validity > 0 {
		exp := now.Add(validity)
		c.ExpiresAt = &exp
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the fields every stored code must carry.
func (c *RedemptionCode) Validate() error {
	switch {
	case c.CodeID == "":
		return integrityError("redemption_code", "code_id is empty")
	case c.ShortCode == "":
		return integrityError("redemption_code", "%s: short_code is empty", c.CodeID)
	case c.ShortCode != strings.ToUpper(c.ShortCode):
		return integrityError("redemption_code", "%s: short_code must be upper case", c.CodeID)
	case c.EmployeeID == "":
		return integrityError("redemption_code", "%s: employee_id is empty", c.CodeID)
	case c.IsRegistered && c.RegisteredAt == nil:
		return integrityError("redemption_code", "%s: registered without registered_at", c.CodeID)
	}
	return nil
}
