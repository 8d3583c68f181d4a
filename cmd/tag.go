package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/ytm/internal/history"
	"github.com/joescharf/ytm/internal/output"
)

var (
	tagListQuery string
	tagListLimit int
	suggestApply bool
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage YouTrack issue tags",
	Long:  "List, find, and mutate tags on YouTrack issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun(cmd.Context())
	},
}

var tagListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tags visible to the configured token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagListRun(cmd.Context())
	},
}

var tagFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find a tag by exact name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagFindRun(cmd.Context(), args[0])
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add <issue> <name>",
	Short: "Add a tag to an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagAddRun(cmd.Context(), args[0], args[1])
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:     "remove <issue> <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a tag from an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagRemoveRun(cmd.Context(), args[0], args[1])
	},
}

var tagSetCmd = &cobra.Command{
	Use:   "set <issue> [name]...",
	Short: "Replace all tags on an issue",
	Long: `Replace the issue's entire tag set with the given names.

Every name must resolve to an existing tag or nothing is changed.
With no names, all tags are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagSetRun(cmd.Context(), args[0], args[1:])
	},
}

var tagClearCmd = &cobra.Command{
	Use:   "clear <issue>",
	Short: "Remove all tags from an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagClearRun(cmd.Context(), args[0])
	},
}

var tagSuggestCmd = &cobra.Command{
	Use:   "suggest <issue>",
	Short: "Suggest tags for an issue using the configured LLM",
	Long: `Ask the configured Anthropic model to suggest tags for an issue based
on its summary and description. Only tags that already exist in the
tracker are suggested. With --apply, each suggested tag is added.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tagSuggestRun(cmd.Context(), args[0])
	},
}

func init() {
	tagListCmd.Flags().StringVar(&tagListQuery, "query", "", "Filter tags by name")
	tagListCmd.Flags().IntVar(&tagListLimit, "limit", 50, "Maximum number of tags")

	tagSuggestCmd.Flags().BoolVar(&suggestApply, "apply", false, "Add the suggested tags to the issue")
	tagSuggestCmd.Flags().Int("max", 5, "Maximum number of suggestions")
	_ = viper.BindPFlag("suggest.max_tags", tagSuggestCmd.Flags().Lookup("max"))

	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagFindCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRemoveCmd)
	tagCmd.AddCommand(tagSetCmd)
	tagCmd.AddCommand(tagClearCmd)
	tagCmd.AddCommand(tagSuggestCmd)
	rootCmd.AddCommand(tagCmd)
}

func tagListRun(ctx context.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	found, err := client.ListTags(ctx, tagListQuery, tagListLimit)
	if err != nil {
		return err
	}

	if len(found) == 0 {
		ui.Info("No tags visible to this token.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Owner"})
	for _, tg := range found {
		owner := ""
		if tg.Owner != nil {
			owner = tg.Owner.Login
		}
		_ = table.Append([]string{tg.ID, output.Cyan(tg.Name), owner})
	}
	_ = table.Render()
	return nil
}

func tagFindRun(ctx context.Context, name string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	tag, err := client.FindTagByName(ctx, name)
	if err != nil {
		return err
	}
	if tag == nil {
		return fmt.Errorf("tag not found: %s (names are case-sensitive)", name)
	}

	owner := ""
	if tag.Owner != nil {
		owner = tag.Owner.Login
	}
	table := ui.Table([]string{"ID", "Name", "Owner"})
	_ = table.Append([]string{tag.ID, output.Cyan(tag.Name), owner})
	_ = table.Render()
	return nil
}

func tagAddRun(ctx context.Context, issueID, name string) error {
	engine, err := getEngine()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add tag '%s' to %s", name, issueID)
		return nil
	}

	result := engine.AddTag(ctx, issueID, name)
	recordMutation(ctx, "add_tag_to_issue", issueID, name, result)
	if msg, failed := resultError(result); failed {
		return fmt.Errorf("%s", msg)
	}

	ui.Success("Added tag '%s' to %s", output.Cyan(name), issueID)
	ui.VerboseLog("%s", result)
	return nil
}

func tagRemoveRun(ctx context.Context, issueID, name string) error {
	engine, err := getEngine()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove tag '%s' from %s", name, issueID)
		return nil
	}

	result := engine.RemoveTag(ctx, issueID, name)
	recordMutation(ctx, "remove_tag_from_issue", issueID, name, result)
	if msg, failed := resultError(result); failed {
		return fmt.Errorf("%s", msg)
	}

	ui.Success("Removed tag '%s' from %s", output.Cyan(name), issueID)
	return nil
}

func tagSetRun(ctx context.Context, issueID string, names []string) error {
	engine, err := getEngine()
	if err != nil {
		return err
	}

	if dryRun {
		if len(names) == 0 {
			ui.DryRunMsg("Would remove all tags from %s", issueID)
		} else {
			ui.DryRunMsg("Would set tags on %s to: %s", issueID, strings.Join(names, ", "))
		}
		return nil
	}

	result := engine.SetTags(ctx, issueID, names)
	recordMutation(ctx, "set_issue_tags", issueID, strings.Join(names, ", "), result)
	if msg, failed := resultError(result); failed {
		return fmt.Errorf("%s", msg)
	}

	if len(names) == 0 {
		ui.Success("Removed all tags from %s", issueID)
	} else {
		ui.Success("Set tags on %s: %s", issueID, strings.Join(names, ", "))
	}
	ui.VerboseLog("%s", result)
	return nil
}

func tagClearRun(ctx context.Context, issueID string) error {
	engine, err := getEngine()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove all tags from %s", issueID)
		return nil
	}

	result := engine.ClearTags(ctx, issueID)
	recordMutation(ctx, "remove_all_tags_from_issue", issueID, "", result)
	if msg, failed := resultError(result); failed {
		return fmt.Errorf("%s", msg)
	}

	ui.Success("Removed all tags from %s", issueID)
	return nil
}

func tagSuggestRun(ctx context.Context, issueID string) error {
	llmClient := newLLMClient()
	if llmClient == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	raw, err := client.GetIssue(ctx, issueID)
	if err != nil {
		return fmt.Errorf("fetch issue: %w", err)
	}
	fields, _ := raw.(map[string]any)
	summary, _ := fields["summary"].(string)
	description, _ := fields["description"].(string)

	available, err := client.ListTags(ctx, "", 100)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	names := make([]string, len(available))
	for i, tg := range available {
		names[i] = tg.Name
	}

	ui.VerboseLog("Asking %s for suggestions", viper.GetString("anthropic.model"))
	suggestions, err := llmClient.SuggestTags(ctx, summary, description, names)
	if err != nil {
		return fmt.Errorf("suggest tags: %w", err)
	}
	if max := viper.GetInt("suggest.max_tags"); max > 0 && len(suggestions) > max {
		suggestions = suggestions[:max]
	}

	if len(suggestions) == 0 {
		ui.Info("No suitable tags suggested for %s", issueID)
		return nil
	}

	ui.Info("Suggested tags for %s:", issueID)
	for _, name := range suggestions {
		fmt.Fprintf(ui.Out, "  %s\n", output.Cyan(name))
	}

	if !suggestApply {
		return nil
	}

	engine, err := getEngine()
	if err != nil {
		return err
	}
	for _, name := range suggestions {
		if dryRun {
			ui.DryRunMsg("Would add tag '%s' to %s", name, issueID)
			continue
		}
		result := engine.AddTag(ctx, issueID, name)
		recordMutation(ctx, "add_tag_to_issue", issueID, name, result)
		if msg, failed := resultError(result); failed {
			ui.Error("Could not add '%s': %s", name, msg)
			continue
		}
		ui.Success("Added tag '%s' to %s", output.Cyan(name), issueID)
	}
	return nil
}

// resultError extracts the error message from an engine result, if any.
func resultError(result string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(result), &m); err != nil {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}

// recordMutation appends a CLI mutation to the audit trail, best-effort.
func recordMutation(ctx context.Context, tool, issueID, detail, result string) {
	hist, err := getHistory(ctx)
	if err != nil || hist == nil {
		return
	}

	entry := &history.Entry{
		Tool:    tool,
		IssueID: issueID,
		Detail:  detail,
		OK:      true,
	}
	if msg, failed := resultError(result); failed {
		entry.OK = false
		entry.Error = msg
	}
	if err := hist.Record(ctx, entry); err != nil {
		ui.VerboseLog("history record failed: %v", err)
	}
}
