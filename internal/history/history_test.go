package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	s, err := NewStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "history.db")

	s, err := NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &Entry{
		Tool:    "add_tag_to_issue",
		IssueID: "DEMO-123",
		Detail:  "tag_name=deploy",
		OK:      true,
	}
	require.NoError(t, s.Record(ctx, e))

	assert.NotEmpty(t, e.ID, "ID assigned on insert")
	assert.False(t, e.CreatedAt.IsZero(), "CreatedAt assigned on insert")

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "add_tag_to_issue", got.Tool)
	assert.Equal(t, "DEMO-123", got.IssueID)
	assert.Equal(t, "tag_name=deploy", got.Detail)
	assert.True(t, got.OK)
	assert.Empty(t, got.Error)
}

func TestRecord_FailureEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &Entry{
		Tool:    "set_issue_tags",
		IssueID: "DEMO-123",
		Detail:  "tag_names=[deploy ghost]",
		OK:      false,
		Error:   "Tags not found: ghost. Use get_available_tags() to see available tags.",
	}))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].OK)
	assert.Contains(t, entries[0].Error, "Tags not found: ghost")
}

func TestRecent_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Entry{
			Tool:      "remove_tag_from_issue",
			IssueID:   "DEMO-1",
			Detail:    string(rune('a' + i)),
			OK:        true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].Detail)
	assert.Equal(t, "d", entries[1].Detail)
	assert.Equal(t, "c", entries[2].Detail)
}

func TestRecent_Empty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, &Entry{Tool: "add_tag_to_issue", IssueID: "DEMO-1", OK: true}))
	}

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
