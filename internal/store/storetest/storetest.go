// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/david2777/hydra-render-farm/internal/store"
)

// New opens a migrated in-memory sqlite store. The pool is capped at a
// single connection so every goroutine in a test shares one database and
// transactions serialize the way the production drivers serialize them.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, store.Migrate(db))
	return db
}
