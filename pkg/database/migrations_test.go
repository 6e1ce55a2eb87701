package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.RunMigrations(EmbeddedMigrations()))

	for _, table := range []string{"users", "events", "tasks"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	pending, err := m.Pending(EmbeddedMigrations())
	require.NoError(t, err)
	assert.Empty(t, pending)

	// running twice is a no-op
	require.NoError(t, m.RunMigrations(EmbeddedMigrations()))
}

func TestLoadMigrations_SortsAndNames(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql": {Data: []byte("CREATE INDEX i ON t(a);")},
		"001_create.sql":    {Data: []byte("CREATE TABLE t(a INTEGER);")},
		"README.md":         {Data: []byte("ignored")},
	}

	migs, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "create", migs[0].Name)
	assert.Equal(t, 2, migs[1].Version)
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	err := m.RunMigrations(fstest.MapFS{"001_broken.sql": {Data: []byte("CREATE TABLE (;")}})
	require.Error(t, err)

	applied, err := m.Applied()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestLoadMigrations_RejectsBadName(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)
}
