package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CTAG07/Oneliner/pkg/chainstore"
	"github.com/CTAG07/Oneliner/pkg/markov"
)

// app carries the state shared by every command once the configuration has
// been loaded.
type app struct {
	configPath string
	config     *Config
	logger     *slog.Logger
}

// NewCLI creates the root command with all subcommands attached.
func NewCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "oneliner",
		Short:         "Build word chains from a oneliner corpus and generate new ones",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "./oneliner.json", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newParseCmd(a),
		newGenerateCmd(a),
		newConvertCmd(a),
		newInfoCmd(a),
		newModelsCmd(a),
		newServeCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	config, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		config.LogLevel = level
	}
	a.config = config
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: config.Level()}))
	return nil
}

// openStore opens the configured database, sets up the schema and returns a
// Store along with a function releasing both.
func (a *app) openStore() (*chainstore.Store, func(), error) {
	dataSource := a.config.DatabasePath
	path, _, _ := strings.Cut(dataSource, "?")
	path = strings.TrimPrefix(path, "file:")
	if dir := filepath.Dir(path); dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := initDB(dataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = chainstore.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup chain schema: %w", err)
	}
	store, err := chainstore.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create chain store: %w", err)
	}
	store.SetLogger(a.logger)

	return store, func() {
		store.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

// loadChain reads a chain either from a snapshot file or, when fromStore is
// set, from the chain store under that name.
func (a *app) loadChain(ctx context.Context, source string, fromStore bool) (*markov.Chain, error) {
	if !fromStore {
		return markov.LoadFile(source)
	}
	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load(ctx, source)
}
