package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/ytm/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the mutation audit trail",
	Long: `Show recent tag mutations recorded by the CLI and the MCP server,
newest first. The trail is local to this machine; it never reads back
into tool behavior.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries")
	rootCmd.AddCommand(historyCmd)
}

func historyRun(ctx context.Context) error {
	hist, err := getHistory(ctx)
	if err != nil {
		return err
	}
	if hist == nil {
		ui.Info("History is disabled. Set history.enabled: true to turn it on.")
		return nil
	}

	entries, err := hist.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		ui.Info("No recorded mutations yet.")
		return nil
	}

	table := ui.Table([]string{"When", "Tool", "Issue", "Detail", "Result"})
	for _, e := range entries {
		result := output.OKColor(e.OK)
		if !e.OK && e.Error != "" {
			result = output.Red(shortError(e.Error))
		}
		_ = table.Append([]string{
			timeAgo(e.CreatedAt),
			e.Tool,
			output.Cyan(e.IssueID),
			e.Detail,
			result,
		})
	}
	_ = table.Render()
	return nil
}

// shortError returns a truncated error message for table display.
func shortError(msg string) string {
	if len(msg) > 48 {
		return msg[:48] + "..."
	}
	return msg
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
