package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ceopilot/internal/config"
	"ceopilot/internal/control"
	"ceopilot/internal/logging"
	"ceopilot/internal/scheduler"
	"ceopilot/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	identity   string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ceopilot",
	Short: "ceoPilot - decision governance kernel for autonomous agents",
	Long: `ceoPilot gates autonomous agent actions through layered policy checks:
behavioral norms, epistemic sufficiency, second-order effects, and
cost-aware model routing. Every routing decision carries a justification
trail and lands in an append-only audit log.

Scheduled tasks are driven through the pipeline by the scheduler; run
"ceopilot serve" to keep a cron-driven sweep running.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initErr := logging.Initialize(".")

		// Workspace debug mode turns on verbose CLI output too.
		zapConfig := zap.NewProductionConfig()
		if verbose || logging.IsDebugMode() {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if initErr != nil {
			logger.Warn("file logging unavailable", zap.Error(initErr))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// serveCmd runs the cron-driven scheduler daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cron-driven scheduler daemon",
	Long: `Starts a cron service that sweeps due scheduled tasks through the
governance pipeline on the configured schedule (scheduler.cron, default
"@every 5m"). Blocks until SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	k, err := openKernel()
	if err != nil {
		return err
	}
	defer k.Close()

	watcher, err := k.startConfigWatcher(cmd.Context())
	if err != nil {
		logger.Warn("config hot reload unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	cfg := k.Config()
	sched := scheduler.New(k.Store, k.Pipeline())
	svc := scheduler.NewService(sched, cfg.Scheduler.Cron, []string{identity}, scheduler.Options{
		MaxTasks:   cfg.Scheduler.MaxTasks,
		DeferDelay: config.Duration(cfg.Scheduler.DeferDelay, scheduler.DefaultDeferDelay),
	})
	if err := svc.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start scheduler service: %w", err)
	}
	logger.Info("scheduler service running",
		zap.String("cron", cfg.Scheduler.Cron),
		zap.String("identity", identity))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	svc.Stop()
	return nil
}

// kernel bundles the wired components the CLI commands share.
type kernel struct {
	mu       sync.RWMutex
	config   *config.Config
	Store    *store.Local
	Controls *control.Manager
}

// openKernel loads config and opens the SQLite store.
func openKernel() (*kernel, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	st, err := store.NewLocal(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &kernel{
		config:   cfg,
		Store:    st,
		Controls: control.NewManager(st),
	}, nil
}

// Config returns the current config snapshot. Hot reloads swap the whole
// snapshot; callers must not mutate it.
func (k *kernel) Config() *config.Config {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.config
}

// ReloadConfig re-reads the config file and refreshes the file-logging
// settings. The norm rule file is re-read by the pipeline on every pass, so
// a rules change needs no extra handling here.
func (k *kernel) ReloadConfig() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	k.mu.Lock()
	k.config = cfg
	k.mu.Unlock()
	return logging.ReloadConfig()
}

// startConfigWatcher watches the config file and the norm rule file and
// reloads on change. Used by the serve daemon.
func (k *kernel) startConfigWatcher(ctx context.Context) (*config.Watcher, error) {
	paths := []string{configPath}
	if rules := k.Config().Norms.RulesPath; rules != "" {
		paths = append(paths, rules)
	}
	watcher, err := config.NewWatcher(paths, func(path string) {
		if err := k.ReloadConfig(); err != nil {
			logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("configuration reloaded", zap.String("path", path))
	})
	if err != nil {
		return nil, err
	}
	watcher.Start(ctx)
	return watcher, nil
}

func (k *kernel) Close() {
	if err := k.Store.Close(); err != nil {
		logger.Warn("failed to close store", zap.Error(err))
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONFile decodes a JSON file into dest.
func readJSONFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".ceopilot/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "default", "Identity whose stores to operate on")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(normsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
