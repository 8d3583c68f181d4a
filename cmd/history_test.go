package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/ytm/internal/history"
)

func TestHistoryRun_Disabled(t *testing.T) {
	testEnv(t)
	viper.Set("history.enabled", false)

	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, historyRun(context.Background()))
	assert.Contains(t, buf.String(), "History is disabled")
}

func TestHistoryRun_Empty(t *testing.T) {
	testEnv(t)

	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, historyRun(context.Background()))
	assert.Contains(t, buf.String(), "No recorded mutations yet")
}

func TestHistoryRun_ShowsEntries(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	hist, err := getHistory(ctx)
	require.NoError(t, err)
	require.NoError(t, hist.Record(ctx, &history.Entry{
		Tool:    "add_tag_to_issue",
		IssueID: "DEMO-7",
		Detail:  "urgent",
		OK:      true,
	}))
	require.NoError(t, hist.Record(ctx, &history.Entry{
		Tool:    "set_issue_tags",
		IssueID: "DEMO-8",
		Detail:  "urgent, ghost",
		OK:      false,
		Error:   "Tags not found: ghost. Use get_available_tags() to see available tags.",
	}))

	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, historyRun(ctx))
	out := buf.String()
	assert.Contains(t, out, "add_tag_to_issue")
	assert.Contains(t, out, "set_issue_tags")
	assert.Contains(t, out, "DEMO-7")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "ghost")
	assert.Contains(t, out, "now")
}

func TestShortError(t *testing.T) {
	assert.Equal(t, "short", shortError("short"))

	got := shortError(strings.Repeat("x", 60))
	assert.Len(t, got, 51)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTimeAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", timeAgo(now))
	assert.Equal(t, "5m ago", timeAgo(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", timeAgo(now.Add(-3*time.Hour)))
	assert.Equal(t, "1d ago", timeAgo(now.Add(-25*time.Hour)))
	assert.Equal(t, "3d ago", timeAgo(now.Add(-3*24*time.Hour)))
}
