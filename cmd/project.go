package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/ytm/internal/output"
)

var (
	projectListLimit int
	projectListAll   bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Browse YouTrack projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd.Context())
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd.Context())
	},
}

func init() {
	projectCmd.PersistentFlags().IntVar(&projectListLimit, "limit", 50, "Maximum number of projects")
	projectCmd.PersistentFlags().BoolVar(&projectListAll, "all", false, "Include archived projects")

	projectCmd.AddCommand(projectListCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectListRun(ctx context.Context) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	projects, err := client.ListProjects(ctx, projectListLimit)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Key", "Name", "ID", "Status"})
	shown := 0
	for _, p := range projects {
		if p.Archived && !projectListAll {
			continue
		}
		_ = table.Append([]string{
			output.Cyan(p.ShortName),
			p.Name,
			p.ID,
			output.ArchivedColor(p.Archived),
		})
		shown++
	}

	if shown == 0 {
		ui.Info("No projects visible to this token.")
		return nil
	}
	_ = table.Render()
	return nil
}
