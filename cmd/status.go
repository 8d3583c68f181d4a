package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/ytm/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and tracker connectivity",
	Long: `Show the effective configuration and check that the configured
YouTrack instance accepts the token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(ctx context.Context) error {
	ui.Info("ytm %s", buildVersion)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		cfgFile = "(none)"
	}

	table := ui.Table([]string{"Setting", "Value"})
	_ = table.Append([]string{"Config file", cfgFile})
	_ = table.Append([]string{"YouTrack URL", displayValue(viper.GetString("youtrack.url"))})
	_ = table.Append([]string{"YouTrack token", redactSecret(viper.GetString("youtrack.token"))})
	_ = table.Append([]string{"History", displayEnabled(viper.GetBool("history.enabled"))})
	_ = table.Append([]string{"History DB", viper.GetString("db_path")})
	_ = table.Append([]string{"Anthropic key", redactSecret(anthropicKey())})
	_ = table.Render()

	if viper.GetBool("history.enabled") {
		if hist, err := getHistory(ctx); err != nil {
			ui.Warning("History database: %v", err)
		} else if n, err := hist.Count(ctx); err != nil {
			ui.Warning("History database: %v", err)
		} else {
			ui.Info("%d recorded mutations", n)
		}
	}

	client, err := getClient()
	if err != nil {
		ui.Warning("%v", err)
		return nil
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		ui.Error("YouTrack connection failed: %v", err)
		return err
	}

	who := user.Login
	if user.Name != "" {
		who = user.Name + " (" + user.Login + ")"
	}
	ui.Success("Connected to %s as %s", output.Cyan(viper.GetString("youtrack.url")), who)
	return nil
}

func displayValue(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func displayEnabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func anthropicKey() string {
	if k := viper.GetString("anthropic.api_key"); k != "" {
		return k
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
