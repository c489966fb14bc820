package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	db, err := Open("sqlite:file::memory:", "silent", PoolConfig{MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	assert.Equal(t, "sqlite", db.Dialector.Name())
	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("sessions"))
	assert.True(t, db.Migrator().HasTable("casbin_rule"))
}

func TestGormLogLevel(t *testing.T) {
	assert.NotEqual(t, gormLogLevel("silent"), gormLogLevel("info"))
	assert.Equal(t, gormLogLevel("warn"), gormLogLevel("unknown"))
}
