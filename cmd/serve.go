package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/ytm/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP API over HTTP",
	Long: `Run a streamable-HTTP MCP server in the foreground.

The MCP endpoint is served at /mcp on the configured address (default
:8347); /healthz reports liveness. Use 'ytm serve start' to run it as a
background daemon instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveForegroundRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the HTTP MCP server as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().String("addr", ":8347", "Address to listen on")
	_ = viper.BindPFlag("serve.addr", serveCmd.PersistentFlags().Lookup("addr"))
}

// pidFile returns the PID file for the serve daemon.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "ytm-serve.pid"))
}

// serveLogPath returns the log file path for the serve daemon.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "ytm-serve.log")
}

// daemonArgs builds the argv for the re-executed daemon process. A --config
// given to this invocation is forwarded, otherwise the child would read the
// default config path.
func daemonArgs(addr string) []string {
	args := []string{"serve", "--addr", addr}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	return args
}

func serveForegroundRun(parent context.Context) error {
	srv, err := getMCPServer(parent)
	if err != nil {
		return err
	}

	addr := viper.GetString("serve.addr")

	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: logRequests(mux),
	}

	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	ui.Info("MCP server listening on %s (endpoint /mcp)", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	ui.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("serve daemon already running (pid %d)", pid)
	}

	addr := viper.GetString("serve.addr")
	if dryRun {
		ui.DryRunMsg("Would start serve daemon on %s", addr)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, daemonArgs(addr)...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start serve daemon: %w", err)
	}

	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	ui.Success("serve daemon started (pid %d)", child.Process.Pid)
	ui.Info("Address: %s  Log: %s", addr, logPath)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("serve daemon not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop serve daemon (pid %d)", pid)
		return nil
	}

	// Two seconds covers the daemon's connection-drain window.
	killed, err := pf.Stop(2 * time.Second)
	if err != nil {
		return fmt.Errorf("stop serve daemon: %w", err)
	}
	if killed {
		ui.Warning("Daemon did not exit in time, killed it")
	}

	_ = pf.Remove()
	ui.Success("serve daemon stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		ui.Success("serve daemon running (pid %d)", pid)
		ui.Info("Address: %s  Log: %s", viper.GetString("serve.addr"), serveLogPath())
		return nil
	}

	ui.Info("serve daemon not running")
	return nil
}

// logRequests logs each HTTP request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
