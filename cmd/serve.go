package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rounds/internal/api"
	"github.com/joescharf/rounds/internal/daemon"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Run the REST API server in the foreground.
By default it listens on port 8080. Use --port to change it.

Use 'rounds serve start' to run it in the background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the API server is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

// serveLock returns the PID lock for the API server.
func serveLock() *daemon.Lock {
	return daemon.NewLock(filepath.Join(viper.GetString("state_dir"), "rounds-serve.pid"))
}

// serveLogPath is where a background server writes its output.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "rounds-serve.log")
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	c, err := getCatalog()
	if err != nil {
		return err
	}

	lock := serveLock()
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	port := viper.GetInt("port")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(s, c).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, daemon.ShutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	ui.Info("Serving API at http://localhost:%d/api/v1", port)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	lock := serveLock()
	if pid, alive := lock.Owner(); alive {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	logPath := serveLogPath()

	if dryRun {
		ui.DryRunMsg("Would start %s serve on port %d (log: %s)", exe, viper.GetInt("port"), logPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	daemon.Detach(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Started API server (pid %d) on port %d", child.Process.Pid, viper.GetInt("port"))
	ui.VerboseLog("Logging to %s", logPath)
	return nil
}

func serveStatusRun() error {
	pid, alive := serveLock().Owner()
	switch {
	case alive:
		ui.Success("API server running (pid %d)", pid)
	case pid != 0:
		ui.Warning("API server not running (stale pid %d)", pid)
	default:
		ui.Info("API server not running")
	}
	return nil
}

func serveStopRun() error {
	lock := serveLock()

	if dryRun {
		switch pid, alive := lock.Owner(); {
		case alive:
			ui.DryRunMsg("Would stop API server (pid %d)", pid)
		case pid != 0:
			ui.DryRunMsg("Would clear stale PID file %s (pid %d)", lock.Path, pid)
		default:
			ui.Info("API server not running")
		}
		return nil
	}

	pid, err := lock.Terminate()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(shutdownTimeout + time.Second)
	for time.Now().Before(deadline) {
		if _, alive := lock.Owner(); !alive {
			ui.Success("Stopped API server (pid %d)", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if _, err := lock.Kill(); err != nil {
		return err
	}
	ui.Warning("API server (pid %d) did not exit in time; killed", pid)
	return nil
}
