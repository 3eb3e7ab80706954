package cli

import (
	"database/sql"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bcgov/colin-migrate/internal/config"
	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/store"
)

// dbFlags are the connection overrides shared by commands that touch a
// database. An empty value keeps the configured DSN.
type dbFlags struct {
	Target string
	Ledger string
}

func (f *dbFlags) bindTarget(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Target, "db", "", "target database DSN (overrides target.dsn)")
}

func (f *dbFlags) bindLedger(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Ledger, "ledger", "", "ledger database DSN (overrides ledger.dsn)")
}

// loadConfig reads --config, or the defaults when it is unset, and applies
// the connection overrides.
func loadConfig(opts *RootOptions, dbs dbFlags) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if dbs.Target != "" {
		cfg.Target.DSN = dbs.Target
	}
	if dbs.Ledger != "" {
		cfg.Ledger.DSN = dbs.Ledger
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// setupLogging installs the global slog handler. Verbose forces debug.
func setupLogging(cfg config.LogConfig, verbose bool, w io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(w, hopts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	}
	slog.SetDefault(slog.New(handler))
}

// openTarget opens the target store, applying its schema.
func openTarget(cfg config.DatabaseConfig) (*store.Store, error) {
	slog.Debug("opening target", "driver", cfg.Driver)
	st, err := store.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open target database", err)
	}
	return st, nil
}

// openLedger opens a read-only reader over the legacy ledger. The caller
// closes the returned pool.
func openLedger(cfg config.DatabaseConfig) (*ledger.Reader, *sql.DB, error) {
	dialect, ok := store.ParseDialect(cfg.Driver)
	if !ok {
		return nil, nil, NewExitError(ExitCommandError, "unsupported ledger driver "+cfg.Driver)
	}
	slog.Debug("opening ledger", "driver", cfg.Driver)
	db, err := store.OpenDB(dialect, cfg.DSN)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open ledger database", err)
	}
	return ledger.NewReader(db, dialect), db, nil
}

func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("error closing database", "db", name, "error", err)
	}
}
