package repository

import (
	"errors"
	"strings"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeExists   = errors.New("employee email already exists")
	ErrCodeNotFound     = errors.New("redemption code not found")
	ErrCodeConflict     = errors.New("redemption code id or active short code taken")
	ErrUserNotFound     = errors.New("system user not found")
	ErrUserExists       = errors.New("system user email already exists")
	ErrBalanceNotEnough = errors.New("token balance not enough")
	ErrOptimisticLock   = errors.New("optimistic lock conflict")
)

// isDuplicateKey reports whether err is a unique constraint violation. The
// drivers disagree on error types, so the message is inspected.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
