package service

import (
	"context"
	"strings"
	"testing"

	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmployeeCreate(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeeService(db, testConfig(), logging.Discard())
	ctx := context.Background()

	e, err := svc.Create(ctx, &CreateEmployeeRequest{
		FirstName: " Thandi ",
		LastName:  "Nkosi",
		Email:     "Thandi@Example.com",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(e.EmployeeID, "EMP"))
	assert.Equal(t, "Thandi", e.FirstName)
	assert.Equal(t, "thandi@example.com", e.Email)
	assert.Equal(t, model.RegistrationStatusPending, e.RegistrationStatus)
	assert.Equal(t, int64(18), e.TokenBalance)
	assert.Equal(t, int64(18), e.TokenAllocation)

	_, err = svc.Create(ctx, &CreateEmployeeRequest{FirstName: "T", LastName: "N", Email: "thandi@example.com"})
	assert.ErrorIs(t, err, ErrEmployeeExists)

	_, err = svc.Create(ctx, &CreateEmployeeRequest{FirstName: "T", LastName: "N", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEmployeeImportCSV(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18) // e1@example.com
	svc := NewEmployeeService(db, testConfig(), logging.Discard())

	input := "\ufefffirstName,lastName,email,mobileNumber\n" +
		"Ann,Adams,ann@example.com,0820000001\n" +
		"Ben,Botha,E1@example.com,0820000002\n" +
		",Coetzee,cee@example.com,\n" +
		"\n" +
		"Dan,Dube,dan@example.com,\n" +
		"Dan,Dube,DAN@example.com,\n"

	res, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "line 4")

	list, total, err := svc.List(context.Background(), "", 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	ann, err := repository.NewEmployeeRepository(db).GetByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, ann)
	assert.Equal(t, "0820000001", ann.MobileNumber)
}

func TestEmployeeImportCSV_BadHeader(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeeService(db, testConfig(), logging.Discard())

	_, err := svc.ImportCSV(context.Background(), strings.NewReader("name,email\nAnn,ann@example.com\n"))
	assert.ErrorIs(t, err, ErrInvalidCSV)

	_, err = svc.ImportCSV(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidCSV)
}

func TestEmployeeGet(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedCode(t, db, "qr_abc", "ABC123", "E1", true)
	svc := NewEmployeeService(db, testConfig(), logging.Discard())
	ctx := context.Background()

	_, err := NewRedemptionService(db, testConfig(), logging.Discard()).Redeem(ctx, "qr_abc", "scanner_1")
	require.NoError(t, err)

	d, err := svc.Get(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, int64(17), d.Employee.TokenBalance)
	assert.Len(t, d.Codes, 1)
	assert.Len(t, d.Transactions, 1)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrEmployeeNotFound)
}

func TestWallet(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedCode(t, db, "qr_abc", "ABC123", "E1", true)
	redeemer := NewRedemptionService(db, testConfig(), logging.Discard())
	svc := NewEmployeeService(db, testConfig(), logging.Discard())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := redeemer.Redeem(ctx, "ABC123", "scanner_1")
		require.NoError(t, err)
	}

	w, err := svc.Wallet(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "E1", w.EmployeeID)
	assert.Equal(t, int64(6), w.TokenBalance)
	assert.Equal(t, int64(12), w.Redeemed)
	assert.True(t, w.CodeActive)
	require.Len(t, w.Transactions, 10)
	assert.Equal(t, int64(6), w.Transactions[0].TokensAfter, "newest first")
}

func TestWallet_InactiveCodeStillReadable(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 4)
	seedCode(t, db, "qr_off", "OFF000", "E1", false)
	seedCode(t, db, "qr_orphan", "ORPHAN", "ghost", true)
	svc := NewEmployeeService(db, testConfig(), logging.Discard())
	ctx := context.Background()

	w, err := svc.Wallet(ctx, "qr_off")
	require.NoError(t, err)
	assert.False(t, w.CodeActive)
	assert.Equal(t, int64(4), w.TokenBalance)
	assert.Empty(t, w.Transactions)

	_, err = svc.Wallet(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.Wallet(ctx, "qr_orphan")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}
