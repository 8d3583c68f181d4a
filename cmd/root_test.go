package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireEnv re-applies the env bindings initConfig sets up, since testEnv
// resets viper.
func wireEnv() {
	viper.SetEnvPrefix("YTM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func TestYouTrackTimeout_Default(t *testing.T) {
	testEnv(t)

	d, err := youtrackTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestYouTrackTimeout_BareSecondsFromEnv(t *testing.T) {
	testEnv(t)
	wireEnv()
	t.Setenv("YTM_YOUTRACK_TIMEOUT", "60")

	d, err := youtrackTimeout()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestYouTrackTimeout_ConfigFileInteger(t *testing.T) {
	dir := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("youtrack:\n  timeout: 45\n"), 0o644))
	viper.SetConfigFile(cfgPath)
	require.NoError(t, viper.ReadInConfig())

	d, err := youtrackTimeout()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)
}

func TestYouTrackTimeout_DurationString(t *testing.T) {
	testEnv(t)
	viper.Set("youtrack.timeout", "2m")

	d, err := youtrackTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}

func TestYouTrackTimeout_Unparseable(t *testing.T) {
	testEnv(t)
	viper.Set("youtrack.timeout", "soon")

	_, err := youtrackTimeout()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "youtrack.timeout")
}

func TestGetClient_TimeoutFromEnv(t *testing.T) {
	testEnv(t)
	wireEnv()
	t.Setenv("YTM_YOUTRACK_TIMEOUT", "60")
	viper.Set("youtrack.url", "https://example.youtrack.cloud")
	viper.Set("youtrack.token", "perm:test")

	client, err := getClient()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, client.HTTPClient.Timeout)
}

func TestGetClient_UnparseableTimeout(t *testing.T) {
	testEnv(t)
	viper.Set("youtrack.url", "https://example.youtrack.cloud")
	viper.Set("youtrack.token", "perm:test")
	viper.Set("youtrack.timeout", "soon")

	_, err := getClient()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "youtrack.timeout")
}
