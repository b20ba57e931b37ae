package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/infrastructure/database"
	"gomonate/internal/model"
	"gomonate/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newFileDB opens a WAL database file shared by conns pooled connections, so
// concurrent callers really run on separate connections.
func newFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gomonate.db")
	db, err := database.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path),
		MaxOpenConns: conns,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{Redemption: "gomonate.redemption"},
		},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			TokenTTL:        time.Hour,
			DefaultPassword: "changeme",
		},
		Event: config.EventConfig{
			Name:                "Test Event",
			TokenAllocation:     18,
			ShortCodeLength:     6,
			RegistrationBaseURL: "https://gomonate.test/register",
		},
		Redemption: config.RedemptionConfig{
			MaxAttempts:  3,
			RetryBackoff: time.Millisecond,
		},
		Business: config.BusinessConfig{MaxRetryCount: 3},
	}
}

func seedEmployee(t *testing.T, db *gorm.DB, id string, balance int64) *model.Employee {
	t.Helper()
	e, err := model.NewEmployee(id, "First"+id, "Last"+id, strings.ToLower(id)+"@example.com", "0820000000", 18)
	require.NoError(t, err)
	e.TokenBalance = balance
	require.NoError(t, repository.NewEmployeeRepository(db).Create(context.Background(), nil, e))
	return e
}

func seedCode(t *testing.T, db *gorm.DB, codeID, shortCode, employeeID string, active bool) *model.RedemptionCode {
	t.Helper()
	c, err := model.NewRedemptionCode(codeID, shortCode, employeeID, "hr-1", time.Now(), 0)
	require.NoError(t, err)
	c.IsActive = active
	require.NoError(t, repository.NewCodeRepository(db).Create(context.Background(), nil, c))
	return c
}

func loadEmployee(t *testing.T, db *gorm.DB, id string) *model.Employee {
	t.Helper()
	e, err := repository.NewEmployeeRepository(db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return e
}

func transactionsOf(t *testing.T, db *gorm.DB, employeeID string) []*model.TokenTransaction {
	t.Helper()
	var rows []*model.TokenTransaction
	require.NoError(t, db.Where("employee_id = ?", employeeID).Order("id ASC").Find(&rows).Error)
	return rows
}
