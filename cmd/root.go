package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/ytm/internal/history"
	"github.com/joescharf/ytm/internal/llm"
	"github.com/joescharf/ytm/internal/mcp"
	"github.com/joescharf/ytm/internal/output"
	"github.com/joescharf/ytm/internal/tags"
	"github.com/joescharf/ytm/internal/youtrack"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	trackerClient *youtrack.Client
	historyStore  *history.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "ytm",
	Short: "YouTrack tag manager and MCP server",
	Long: `ytm manages tags on YouTrack issues, from the terminal or as an MCP
server for LLM agents. Tag names are resolved against the tracker on
every call; nothing is cached locally except the mutation audit log.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/ytm/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "ytm")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("YTM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Existing YouTrack tooling configures itself through these names, so
	// honor them alongside the YTM_* forms.
	_ = viper.BindEnv("youtrack.url", "YTM_YOUTRACK_URL", "YOUTRACK_URL")
	_ = viper.BindEnv("youtrack.token", "YTM_YOUTRACK_TOKEN", "YOUTRACK_API_TOKEN")

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "ytm")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "history.db"))
	viper.SetDefault("youtrack.url", "")
	viper.SetDefault("youtrack.token", "")
	viper.SetDefault("youtrack.timeout", 30*time.Second)
	viper.SetDefault("youtrack.verify_ssl", true)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("serve.addr", ":8347")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("suggest.max_tags", 5)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// The YouTrack client and history store are initialized lazily so that
	// config/version commands run without a configured tracker.
}

// getClient returns the shared YouTrack client, initializing it on first use.
func getClient() (*youtrack.Client, error) {
	if trackerClient != nil {
		return trackerClient, nil
	}

	baseURL := viper.GetString("youtrack.url")
	if baseURL == "" {
		return nil, fmt.Errorf("youtrack.url is not set (set YOUTRACK_URL or run 'ytm config init')")
	}
	token := viper.GetString("youtrack.token")
	if token == "" {
		return nil, fmt.Errorf("youtrack.token is not set (set YOUTRACK_API_TOKEN or run 'ytm config init')")
	}

	timeout, err := youtrackTimeout()
	if err != nil {
		return nil, err
	}

	opts := []youtrack.Option{
		youtrack.WithTimeout(timeout),
	}
	if !viper.GetBool("youtrack.verify_ssl") {
		opts = append(opts, youtrack.WithInsecureTLS())
	}

	trackerClient = youtrack.New(baseURL, token, opts...)
	return trackerClient, nil
}

// youtrackTimeout returns the configured request timeout. Bare numbers mean
// seconds, so "timeout: 30" in config.yaml and YTM_YOUTRACK_TIMEOUT=60 both
// work; anything else must be a Go duration string like "45s". viper's
// GetDuration reads both plain forms as nanoseconds.
func youtrackTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(viper.GetString("youtrack.timeout"))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("youtrack.timeout %q is neither a number of seconds nor a duration", raw)
	}
	return d, nil
}

// getEngine builds the tag engine over the shared client.
func getEngine() (*tags.Engine, error) {
	client, err := getClient()
	if err != nil {
		return nil, err
	}
	return tags.New(client, client), nil
}

// getHistory returns the shared audit store, or nil when history is disabled.
func getHistory(ctx context.Context) (*history.Store, error) {
	if !viper.GetBool("history.enabled") {
		return nil, nil
	}
	if historyStore != nil {
		return historyStore, nil
	}

	st, err := history.NewStore(viper.GetString("db_path"))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	historyStore = st
	return historyStore, nil
}

// getMCPServer wires the full MCP server from the shared dependencies.
func getMCPServer(ctx context.Context) (*mcp.Server, error) {
	engine, err := getEngine()
	if err != nil {
		return nil, err
	}
	client, err := getClient()
	if err != nil {
		return nil, err
	}

	hist, err := getHistory(ctx)
	if err != nil {
		return nil, err
	}
	var rec history.Recorder
	if hist != nil {
		rec = hist
	}

	return mcp.NewServer(engine, client, rec, buildVersion), nil
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}
