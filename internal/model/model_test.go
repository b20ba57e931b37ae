package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmployee(t *testing.T) {
	e, err := NewEmployee("EMP1", " Thandi ", "Nkosi", " Thandi@Example.com ", "0820000000", 18)
	require.NoError(t, err)
	assert.Equal(t, "Thandi", e.FirstName)
	assert.Equal(t, "thandi@example.com", e.Email)
	assert.Equal(t, RegistrationStatusPending, e.RegistrationStatus)
	assert.Equal(t, int64(18), e.TokenBalance)
	assert.Equal(t, int64(18), e.TokenAllocation)
}

func TestEmployeeValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		e    Employee
	}{
		{"no id", Employee{FirstName: "a", LastName: "b", Email: "a@b", TokenAllocation: 1, RegistrationStatus: RegistrationStatusPending}},
		{"no name", Employee{EmployeeID: "E", LastName: "b", Email: "a@b", TokenAllocation: 1, RegistrationStatus: RegistrationStatusPending}},
		{"bad email", Employee{EmployeeID: "E", FirstName: "a", LastName: "b", Email: "ab", TokenAllocation: 1, RegistrationStatus: RegistrationStatusPending}},
		{"negative balance", Employee{EmployeeID: "E", FirstName: "a", LastName: "b", Email: "a@b", TokenAllocation: 1, TokenBalance: -1, RegistrationStatus: RegistrationStatusPending}},
		{"bad status", Employee{EmployeeID: "E", FirstName: "a", LastName: "b", Email: "a@b", TokenAllocation: 1, RegistrationStatus: "archived"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.e.Validate(), ErrDataIntegrity)
		})
	}
}

func TestNewRedemptionCode(t *testing.T) {
	now := time.Date(2025, 12, 5, 18, 0, 0, 0, time.UTC)

	c, err := NewRedemptionCode("qr_abc", "a1b2c3", "EMP1", "hr-1", now, 0)
	require.NoError(t, err)
	assert.Equal(t, "A1B2C3", c.ShortCode)
	assert.True(t, c.IsActive)
	assert.False(t, c.IsRegistered)
	assert.Nil(t, c.ExpiresAt)

	c, err = NewRedemptionCode("qr_abc", "A1B2C3", "EMP1", "hr-1", now, 6*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, now.Add(6*time.Hour), *c.ExpiresAt)

	_, err = NewRedemptionCode("qr_abc", "A1B2C3", "", "hr-1", now, 0)
	assert.ErrorIs(t, err, ErrDataIntegrity)

	c.SyncActiveShortCode()
	require.NotNil(t, c.ActiveShortCode)
	assert.Equal(t, "A1B2C3", *c.ActiveShortCode)
	c.IsActive = false
	c.SyncActiveShortCode()
	assert.Nil(t, c.ActiveShortCode)
}

func TestNewRedemption(t *testing.T) {
	txn, err := NewRedemption("TXN1", "EMP1", "qr_abc", "scanner_7", 18)
	require.NoError(t, err)
	assert.Equal(t, int64(1), txn.Amount)
	assert.Equal(t, int64(18), txn.TokensBefore)
	assert.Equal(t, int64(17), txn.TokensAfter)
	assert.Equal(t, TransactionTypeRedemption, txn.Type)

	_, err = NewRedemption("TXN2", "EMP1", "qr_abc", "scanner_7", 0)
	assert.ErrorIs(t, err, ErrDataIntegrity)

	_, err = NewRedemption("TXN3", "EMP1", "qr_abc", "", 5)
	assert.ErrorIs(t, err, ErrDataIntegrity)

	bad := &TokenTransaction{TransactionID: "T", EmployeeID: "E", CodeID: "C", ScannerID: "S", Amount: 1, TokensBefore: 5, TokensAfter: 5}
	assert.ErrorIs(t, bad.Validate(), ErrDataIntegrity)
}

func TestSystemUserValidate(t *testing.T) {
	u := &SystemUser{ID: "u1", Email: "a@b.c", Role: RoleScanner, PasswordHash: "x"}
	require.NoError(t, u.Validate())

	u.Role = "guest"
	assert.ErrorIs(t, u.Validate(), ErrDataIntegrity)
	assert.False(t, IsValidRole("guest"))
	assert.True(t, IsValidRole(RoleHR))
}
