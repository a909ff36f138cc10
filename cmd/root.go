package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pable/go-cr-meta/internal/config"
	"github.com/pable/go-cr-meta/internal/storage"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crmeta",
	Short: "Clash Royale ranked deck meta snapshots",
	Long: `Scan the battle logs of the top ranked players, classify every deck into an
archetype, and store a fresh meta snapshot in SQLite or Postgres.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite path or postgres:// DSN (default ~/.crmeta/meta.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.crmeta/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(decksCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(playerCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellCmd)
}

// setup loads configuration and builds the logger. Flags win over the
// config file and environment.
func setup(cmd *cobra.Command, _ []string) error {
	path, optional := configPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}
	c, err := config.LoadFromEnv(path, optional)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Database = dbPath
	}
	cfg = c

	zc := zap.NewProductionConfig()
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log = l
	return nil
}

// openDB opens the configured store, creating the parent directory of a
// SQLite file when needed.
func openDB() (*storage.DB, error) {
	if storage.DialectFor(cfg.Database) == storage.SQLite {
		if err := ensureDir(cfg.Database); err != nil {
			return nil, err
		}
	}
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}
