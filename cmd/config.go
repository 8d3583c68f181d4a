package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ytm"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage ytm configuration.

Running bare 'ytm config' is the same as 'ytm config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate renders config.yaml with every knob documented. Values come
// from the effective config, so init after exporting YOUTRACK_URL pre-fills
// the URL.
const configTemplate = `# ytm configuration
# See: ytm config show (for effective values and sources)

# State/data directory (default: ~/.config/ytm)
# state_dir: {{ .StateDir }}

# Mutation history database path (default: ~/.config/ytm/history.db)
# db_path: {{ .DBPath }}

# YouTrack connection
youtrack:
  # Base URL of the instance, e.g. https://example.youtrack.cloud
  # (env: YOUTRACK_URL)
  url: "{{ .YouTrackURL }}"

  # Permanent token (env: YOUTRACK_API_TOKEN)
  token: "{{ .YouTrackToken }}"

  # Request timeout (default: 30s)
  timeout: {{ .YouTrackTimeout }}

  # Verify TLS certificates (default: true)
  verify_ssl: {{ .YouTrackVerifySSL }}

# Mutation audit log
history:
  # Record tag mutations locally (default: true)
  enabled: {{ .HistoryEnabled }}

# HTTP MCP server ('ytm serve')
serve:
  # Listen address (default: ":8347")
  addr: "{{ .ServeAddr }}"

# Anthropic, used by 'ytm tag suggest'
anthropic:
  # API key (or set ANTHROPIC_API_KEY)
  api_key: "{{ .AnthropicAPIKey }}"

  # Model for tag suggestions
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	YouTrackURL       string
	YouTrackToken     string
	YouTrackTimeout   time.Duration
	YouTrackVerifySSL bool
	HistoryEnabled    bool
	ServeAddr         string
	AnthropicAPIKey   string
	AnthropicModel    string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// renderConfig fills the template from the effective viper values.
func renderConfig() ([]byte, error) {
	timeout, err := youtrackTimeout()
	if err != nil {
		return nil, err
	}

	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		YouTrackURL:       viper.GetString("youtrack.url"),
		YouTrackToken:     viper.GetString("youtrack.token"),
		YouTrackTimeout:   timeout,
		YouTrackVerifySSL: viper.GetBool("youtrack.verify_ssl"),
		HistoryEnabled:    viper.GetBool("history.enabled"),
		ServeAddr:         viper.GetString("serve.addr"),
		AnthropicAPIKey:   viper.GetString("anthropic.api_key"),
		AnthropicModel:    viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	rendered, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, string(rendered))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// The file holds tokens, so keep it owner-only.
	if err := os.WriteFile(cfgPath, rendered, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(rendered))
	return nil
}

// configKeyInfo describes one config key for 'config show'. EnvVars lists
// every environment name the key answers to, highest precedence first.
type configKeyInfo struct {
	Key     string
	EnvVars []string
	Secret  bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVars: []string{"YTM_STATE_DIR"}},
	{Key: "db_path", EnvVars: []string{"YTM_DB_PATH"}},
	{Key: "youtrack.url", EnvVars: []string{"YTM_YOUTRACK_URL", "YOUTRACK_URL"}},
	{Key: "youtrack.token", EnvVars: []string{"YTM_YOUTRACK_TOKEN", "YOUTRACK_API_TOKEN"}, Secret: true},
	{Key: "youtrack.timeout", EnvVars: []string{"YTM_YOUTRACK_TIMEOUT"}},
	{Key: "youtrack.verify_ssl", EnvVars: []string{"YTM_YOUTRACK_VERIFY_SSL"}},
	{Key: "history.enabled", EnvVars: []string{"YTM_HISTORY_ENABLED"}},
	{Key: "serve.addr", EnvVars: []string{"YTM_SERVE_ADDR"}},
	{Key: "anthropic.api_key", EnvVars: []string{"YTM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}, Secret: true},
	{Key: "anthropic.model", EnvVars: []string{"YTM_ANTHROPIC_MODEL"}},
	{Key: "suggest.max_tags", EnvVars: []string{"YTM_SUGGEST_MAX_TAGS"}},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := configFileKeys(cfgPath)
	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = redactSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVars, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// redactSecret hides a secret value while still showing whether it is set.
func redactSecret(val string) string {
	if val == "" {
		return "(unset)"
	}
	return "(set)"
}

// configFileKeys parses the raw YAML file and reports which dotted keys it
// sets. Unreadable or malformed files count as setting nothing, since viper
// would ignore them too.
func configFileKeys(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource reports where a config value comes from: an environment
// variable, the config file, or the built-in default.
func detectSource(key string, envVars []string, fileValues map[string]bool) string {
	for _, envVar := range envVars {
		if _, ok := os.LookupEnv(envVar); ok {
			return fmt.Sprintf("(env: %s)", envVar)
		}
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, point it at your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'ytm config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
