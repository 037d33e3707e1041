package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rounds/internal/locale"
	"github.com/joescharf/rounds/internal/logger"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	catalog   *locale.Catalog

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "rounds",
	Short: "Track peer review rounds and their status",
	Long: `rounds tracks submissions through internal and external peer review.
It records review rounds, reviewer assignments and revision files, and
derives each round's status from them.`,
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
		return statusOverviewRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/rounds/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Nested keys map to env vars as ROUNDS_LOG_LEVEL, ROUNDS_ANTHROPIC_MODEL.
	viper.SetEnvPrefix("ROUNDS")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults() {
	dir, _ := configDirFunc()

	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "rounds.db"))
	viper.SetDefault("locale", "en")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("port", 8080)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	slog.SetDefault(logger.New(logConfig(), os.Stderr))

	// The store opens lazily so config/version run without a database.
}

// logConfig reads the log.* keys; --verbose forces debug.
func logConfig() logger.Config {
	cfg := logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}
	if verbose {
		cfg.Level = "debug"
	}
	return cfg
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getCatalog returns the label catalog, loading it on first call.
func getCatalog() (*locale.Catalog, error) {
	if catalog != nil {
		return catalog, nil
	}
	c, err := locale.Load()
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	catalog = c
	return catalog, nil
}
