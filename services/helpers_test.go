package services

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"forum-progression/config"
	"forum-progression/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errInjected = errors.New("injected failure")

// setupDB opens a fresh migrated sqlite database in the test's temp dir.
// One connection keeps writers serialized the way sqlite needs.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "progression.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func setupEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	return NewEngine(db, config.Default()), db
}

func setupEngineWith(t *testing.T, yaml string) (*Engine, *gorm.DB) {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	db := setupDB(t)
	return NewEngine(db, cfg), db
}

// failWhen makes every create or update statement against table fail while
// the returned switch is on and match (if any) accepts the statement.
func failWhen(t *testing.T, db *gorm.DB, table string, match func(*gorm.DB) bool) *atomic.Bool {
	t.Helper()
	on := &atomic.Bool{}
	on.Store(true)
	inject := func(tx *gorm.DB) {
		if !on.Load() || tx.Statement.Table != table {
			return
		}
		if match == nil || match(tx) {
			tx.AddError(errInjected)
		}
	}
	name := "test:fail:" + table + ":" + t.Name()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, inject))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, inject))
	t.Cleanup(func() { on.Store(false) })
	return on
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pointsOf(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var prog models.UserProgression
	err := db.Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return prog.Points
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
