package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hiky-bot-backend/internal/common/errors"
	"hiky-bot-backend/internal/features/query/models"
	"hiky-bot-backend/internal/platform/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIsSelect(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"plain select", "SELECT * FROM users", true},
		{"lowercase", "select telegram_id from users", true},
		{"leading whitespace", "  \n SELECT 1", true},
		{"trailing semicolon", "SELECT 1;", true},
		{"leading line comment", "-- count them\nSELECT COUNT(*) FROM hikes", true},
		{"leading block comment", "/* audit */ SELECT name FROM users", true},
		{"empty", "", false},
		{"only comment", "-- nothing here", false},
		{"insert", "INSERT INTO users VALUES (1)", false},
		{"update", "UPDATE users SET name = 'x'", false},
		{"delete", "DELETE FROM hikes", false},
		{"drop", "DROP TABLE users", false},
		{"pragma", "PRAGMA table_info(users)", false},
		{"stacked statements", "SELECT 1; DROP TABLE users", false},
		{"dml after comment", "/* x */ DELETE FROM users", false},
		{"dml keyword inside select", "SELECT 1 WHERE 'a' = 'delete from'", false},
		{"cte smuggling create", "SELECT 1; CREATE TABLE t (x)", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsSelect(tc.text))
		})
	}
}

func TestRunRejectsNonSelect(t *testing.T) {
	runner := NewRunner(newTestDB(t))

	_, err := runner.Run(context.Background(), "DELETE FROM users")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRejected))
}

func TestRunReturnsRows(t *testing.T) {
	db := newTestDB(t)
	for i := 1; i <= 3; i++ {
		_, err := db.Exec("INSERT INTO users (telegram_id, username) VALUES (?, ?)", i, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	runner := NewRunner(db)

	res, err := runner.Run(context.Background(), "SELECT telegram_id, username FROM users ORDER BY telegram_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"telegram_id", "username"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "u2", res.Rows[1]["username"])
	assert.False(t, res.Truncated)
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestRunTruncatesLargeResults(t *testing.T) {
	db := newTestDB(t)
	for i := 1; i <= MaxRows+50; i++ {
		_, err := db.Exec("INSERT INTO users (telegram_id, username) VALUES (?, ?)", i, "bulk")
		require.NoError(t, err)
	}
	runner := NewRunner(db)

	res, err := runner.Run(context.Background(), "SELECT telegram_id FROM users")
	require.NoError(t, err)
	assert.Len(t, res.Rows, MaxRows)
	assert.True(t, res.Truncated, "the caller must know rows were dropped")
}

func TestTemplateStore(t *testing.T) {
	db := newTestDB(t)
	store := NewTemplateStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.Saved{Name: "actives", Text: "SELECT * FROM hikes WHERE is_active = 1", CreatedBy: 7}))
	require.NoError(t, store.Save(ctx, models.Saved{Name: "actives", Text: "SELECT id FROM hikes WHERE is_active = 1", CreatedBy: 7}))

	got, err := store.Get(ctx, "actives")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM hikes WHERE is_active = 1", got.Text, "saving the same name overwrites")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, "actives"))
	_, err = store.Get(ctx, "actives")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}
