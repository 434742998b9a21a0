package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/logrotate/pkg/util"
)

func openTestDatabase(t *testing.T) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "state.db")+"?_loc=UTC")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.MapperFunc(util.CamelToSnakeCase)

	schema, err := Migrations.ReadFile("migrations/1_create_rotation_states.up.sql")
	require.NoError(t, err)

	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStateRepository(openTestDatabase(t))

	_, ok, err := repo.LastRotatedAt(ctx, "/var/log/app.log")
	assert.Nil(t, err)
	assert.False(t, ok)

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, repo.RecordSuccess(ctx, "/var/log/app.log", first))
	require.NoError(t, repo.RecordSuccess(ctx, "/var/log/app.log", second))
	require.NoError(t, repo.RecordSuccess(ctx, "/var/log/db.log", first))

	at, ok, err := repo.LastRotatedAt(ctx, "/var/log/app.log")
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.True(t, second.Equal(at), "%s != %s", second, at)

	require.NoError(t, repo.Prune(ctx, func(targetPath string) bool { return targetPath == "/var/log/app.log" }))

	states, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "/var/log/app.log", states[0].TargetPath)

	assert.Nil(t, repo.Flush(ctx))
}
