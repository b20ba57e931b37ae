package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gomonate/internal/logging"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAssign_FirstCode(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())

	code, err := svc.Assign(context.Background(), "E1", "hr-1")
	require.NoError(t, err)

	assert.Regexp(t, `^qr_[0-9a-z]+$`, code.CodeID)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code.ShortCode)
	assert.True(t, code.IsActive)
	assert.Equal(t, "hr-1", code.AssignedBy)
	assert.Nil(t, code.ExpiresAt)

	e := loadEmployee(t, db, "E1")
	assert.Equal(t, model.RegistrationStatusCodeAssigned, e.RegistrationStatus)
	assert.Equal(t, code.CodeID, e.CurrentCodeID)
	assert.Equal(t, int64(18), e.TokenBalance)
}

func TestAssign_ReassignDeactivatesPreviousCode(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 12)
	old := seedCode(t, db, "qr_old", "OLD111", "E1", true)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())
	ctx := context.Background()

	code, err := svc.Assign(ctx, "E1", "hr-2")
	require.NoError(t, err)
	assert.NotEqual(t, old.CodeID, code.CodeID)

	codes, err := svc.ListForEmployee(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, codes, 2)

	active := 0
	for _, c := range codes {
		if c.IsActive {
			active++
			assert.Equal(t, code.CodeID, c.CodeID)
		} else {
			assert.Equal(t, old.CodeID, c.CodeID)
			assert.NotNil(t, c.DeactivatedAt)
		}
	}
	assert.Equal(t, 1, active)

	// the balance survives reassignment
	assert.Equal(t, int64(12), loadEmployee(t, db, "E1").TokenBalance)

	_, err = NewRedemptionService(db, testConfig(), logging.Discard()).Redeem(ctx, "qr_old", "scanner_1")
	assert.ErrorIs(t, err, ErrInactiveCode)
}

func TestAssign_UnknownEmployee(t *testing.T) {
	db := newTestDB(t)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())

	_, err := svc.Assign(context.Background(), "missing", "hr-1")
	assert.ErrorIs(t, err, repository.ErrEmployeeNotFound)
}

func TestAssign_SetsExpiryWhenConfigured(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	cfg := testConfig()
	cfg.Event.CodeValidity = time.Hour
	svc := NewCodeService(db, nil, cfg, logging.Discard())

	code, err := svc.Assign(context.Background(), "E1", "hr-1")
	require.NoError(t, err)
	require.NotNil(t, code.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *code.ExpiresAt, time.Minute)
}

func TestAssign_ShortCodeTakenAtInsertIsRetried(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedEmployee(t, db, "E2", 18)
	seedCode(t, db, "qr_taken", "TAKEN1", "E2", true)

	// another assignment claims the candidate short code between the
	// availability check and the insert
	inserts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:claim_short_code", func(tx *gorm.DB) {
		code, ok := tx.Statement.Dest.(*model.RedemptionCode)
		if !ok {
			return
		}
		inserts++
		if inserts == 1 {
			code.ShortCode = "TAKEN1"
			code.SyncActiveShortCode()
		}
	}))

	svc := NewCodeService(db, nil, testConfig(), logging.Discard())
	code, err := svc.Assign(context.Background(), "E1", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inserts)
	assert.NotEqual(t, "TAKEN1", code.ShortCode)

	codes, err := svc.ListForEmployee(context.Background(), "E1")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, code.CodeID, codes[0].CodeID)
	assert.Equal(t, code.CodeID, loadEmployee(t, db, "E1").CurrentCodeID)

	other, err := repository.NewCodeRepository(db).GetByShortCode(context.Background(), nil, "TAKEN1")
	require.NoError(t, err)
	assert.Equal(t, "E2", other.EmployeeID)
	assert.True(t, other.IsActive)
}

func TestAssign_LocksEmployeeRow(t *testing.T) {
	db, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `employee` WHERE employee_id = \\? .*FOR UPDATE").
		WillReturnError(errors.New("Error 1205 (HY000): Lock wait timeout exceeded"))
	mock.ExpectRollback()

	svc := NewCodeService(db, nil, testConfig(), logging.Discard())
	_, err := svc.Assign(context.Background(), "E1", "hr-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssign_WithRedisLock(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	svc := NewCodeService(db, client, testConfig(), logging.Discard())

	_, err := svc.Assign(context.Background(), "E1", "hr-1")
	require.NoError(t, err)
	assert.False(t, mr.Exists("gomonate:lock:assign:E1"), "lock must be released")
}

func TestAssign_LockHeldElsewhere(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("gomonate:lock:assign:E1", "other-instance"))
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	svc := NewCodeService(db, client, testConfig(), logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err := svc.Assign(ctx, "E1", "hr-1")
	assert.ErrorIs(t, err, ErrBusy)

	codes, err := svc.ListForEmployee(context.Background(), "E1")
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.True(t, mr.Exists("gomonate:lock:assign:E1"), "foreign lock must not be released")
}

func TestRegister_FirstAndRepeated(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedCode(t, db, "qr_abc", "ABC123", "E1", true)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())
	ctx := context.Background()

	res, err := svc.Register(ctx, "abc123", "device-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyRegistered)
	assert.Equal(t, model.RegistrationStatusRegistered, res.Employee.RegistrationStatus)
	assert.True(t, res.Code.IsRegistered)
	require.NotNil(t, res.Code.RegisteredDeviceID)
	assert.Equal(t, "device-1", *res.Code.RegisteredDeviceID)
	require.NotNil(t, res.Code.RegisteredAt)

	res, err = svc.Register(ctx, "qr_abc", "device-2")
	require.NoError(t, err)
	assert.True(t, res.AlreadyRegistered)
	assert.Equal(t, "device-1", *res.Code.RegisteredDeviceID)
}

func TestRegister_Rejections(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedCode(t, db, "qr_off", "OFF000", "E1", false)
	seedCode(t, db, "qr_orphan", "ORPHAN", "ghost", true)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())
	ctx := context.Background()

	_, err := svc.Register(ctx, "NOPE99", "")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.Register(ctx, "qr_off", "")
	assert.ErrorIs(t, err, ErrInactiveCode)

	_, err = svc.Register(ctx, "qr_orphan", "")
	assert.ErrorIs(t, err, ErrEmployeeNotFound)

	// the failed registration of the orphan rolled back
	c, err := repository.NewCodeRepository(db).GetByCodeID(ctx, nil, "qr_orphan")
	require.NoError(t, err)
	assert.False(t, c.IsRegistered)
}

func TestQRCode(t *testing.T) {
	db := newTestDB(t)
	seedEmployee(t, db, "E1", 18)
	seedCode(t, db, "qr_abc", "ABC123", "E1", true)
	svc := NewCodeService(db, nil, testConfig(), logging.Discard())

	assert.Equal(t, "https://gomonate.test/register?code=qr_abc", svc.RegistrationURL("qr_abc"))

	png, err := svc.QRCode(context.Background(), "qr_abc", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))

	_, err = svc.QRCode(context.Background(), "qr_missing", 256)
	assert.ErrorIs(t, err, ErrInvalidCode)
}
