package model

import (
	"strings"
	"time"
)

const (
	RoleSuperAdmin = "superadmin"
	RoleHR         = "hr"
	RoleScanner    = "scanner"
)

// SystemUser is a staff account. Its ID is the scanner identity recorded on
// every redemption the user performs.
type SystemUser struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email              string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	FirstName          string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName           string     `gorm:"type:varchar(100)" json:"last_name"`
	Role               string     `gorm:"type:varchar(20);index;not null" json:"role"`
	PasswordHash       string     `gorm:"type:varchar(255);not null" json:"-"`
	IsActive           bool       `gorm:"index;not null" json:"is_active"`
	MustChangePassword bool       `gorm:"not null" json:"must_change_password"`
	CreatedBy          string     `gorm:"type:varchar(36)" json:"created_by,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemUser) TableName() string {
	return "system_user"
}

func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleHR, RoleScanner:
		return true
	}
	return false
}

func (u *SystemUser) Validate() error {
	switch {
	case u.ID == "":
		return integrityError("system_user", "id is empty")
	case !strings.Contains(u.Email, "@"):
		return integrityError("system_user", "%s: invalid email %q", u.ID, u.Email)
	case !IsValidRole(u.Role):
		return integrityError("system_user", "%s: unknown role %q", u.ID, u.Role)
	case u.PasswordHash == "":
		return integrityError("system_user", "%s: password hash is empty", u.ID)
	}
	return nil
}
