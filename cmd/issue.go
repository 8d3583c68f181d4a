package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/ytm/internal/normalize"
	"github.com/joescharf/ytm/internal/output"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect YouTrack issues",
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue>",
	Short: "Show an issue as JSON",
	Long: `Fetch an issue and print it as JSON. Epoch-millisecond timestamp
fields get an ISO-8601 sibling (created_iso8601 and so on) for
readability.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueTagsCmd = &cobra.Command{
	Use:   "tags <issue>",
	Short: "List the tags on an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueTagsRun(cmd.Context(), args[0])
	},
}

func init() {
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueTagsCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueShowRun(ctx context.Context, issueID string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	issue, err := client.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}

	fmt.Fprintln(ui.Out, normalize.FormatJSON(issue))
	return nil
}

func issueTagsRun(ctx context.Context, issueID string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	found, err := client.IssueTags(ctx, issueID)
	if err != nil {
		return err
	}

	if len(found) == 0 {
		ui.Info("No tags on %s.", issueID)
		return nil
	}

	table := ui.Table([]string{"ID", "Name"})
	for _, tg := range found {
		_ = table.Append([]string{tg.ID, output.Cyan(tg.Name)})
	}
	_ = table.Render()
	return nil
}
