package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var ret int
	require.NoError(t, db.QueryRow(query).Scan(&ret))
	return ret
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	create := fstest.MapFS{
		"001_items.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE items(id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
		"002_tags.sql":  &fstest.MapFile{Data: []byte("CREATE TABLE tags(id INTEGER PRIMARY KEY);")},
		"README.md":     &fstest.MapFile{Data: []byte("ignored")},
	}

	db := openDB(t)
	require.NoError(t, Apply(ctx, db, create, ""))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='items'"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tags'"))

	require.NoError(t, Apply(ctx, db, create, "."), "replay is idempotent")
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestApply_FailedMigrationNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	bad := fstest.MapFS{"001_bad.sql": &fstest.MapFile{Data: []byte("CREAT TABLE things(id INT);")}}
	assert.Error(t, Apply(ctx, db, bad, ""))
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))

	good := fstest.MapFS{"001_bad.sql": &fstest.MapFile{Data: []byte("CREATE TABLE things(id INT);")}}
	require.NoError(t, Apply(ctx, db, good, ""))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestUp(t *testing.T) {
	var testCases = []struct {
		description string
		content     string
		expect      string
	}{
		{description: "no markers", content: "SELECT 1;", expect: "SELECT 1;"},
		{description: "up only", content: "-- +migrate Up\nSELECT 1;", expect: "\nSELECT 1;"},
		{description: "up and down", content: "-- +migrate Up\nSELECT 1;\n-- +migrate Down\nSELECT 2;", expect: "\nSELECT 1;\n"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Up(testCase.content), testCase.description)
	}
}
