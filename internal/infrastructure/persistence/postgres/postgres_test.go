package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/domain/shared"
)

func TestMigrations_OrderedAndReversible(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions must be contiguous")
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
	assert.Contains(t, migrations[0].UpSQL, "visible BOOLEAN NOT NULL DEFAULT TRUE")
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := &pgconn.PgError{Code: "40P01"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(serialization))
	assert.True(t, IsConflict(serialization))
	assert.True(t, IsConflict(deadlock))
	assert.False(t, IsConflict(errors.New("plain")))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	domain := profile.ErrTargetHidden
	assert.Same(t, domain, classify("op", domain))

	conflict := classify("update_pair", &pgconn.PgError{Code: "40001"})
	assert.ErrorIs(t, conflict, shared.ErrConcurrentModification)
	assert.True(t, shared.IsRetryable(conflict))

	down := classify("update_pair", errors.New("connection reset"))
	assert.ErrorIs(t, down, shared.ErrServiceUnavailable)
	assert.True(t, shared.IsRetryable(down))
}

func TestIDConversions(t *testing.T) {
	ids := []profile.ID{3, 1, 2}
	assert.Equal(t, []int64{3, 1, 2}, toInt64s(ids))
	assert.Equal(t, ids, toIDs(toInt64s(ids)))
}
