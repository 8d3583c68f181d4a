package cmd

import (
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an LLM agent manage YouTrack issue tags natively. Configure in
Claude Code with:

  {
    "mcpServers": {
      "youtrack-tags": { "command": "ytm", "args": ["mcp"] }
    }
  }

Available tools: get_available_tags, get_issue_tags, add_tag_to_issue,
remove_tag_from_issue, set_issue_tags, remove_all_tags_from_issue,
find_tag_by_name, get_issue, get_projects`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := getMCPServer(cmd.Context())
		if err != nil {
			return err
		}
		ui.VerboseLog("MCP stdio server starting")
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
