package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bcgov/colin-migrate/internal/ledger"
	"github.com/bcgov/colin-migrate/internal/store"
	"github.com/bcgov/colin-migrate/internal/testutil"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	dbFlags
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load a ledger fixture into a SQLite ledger",
		Long: `Create the legacy ledger schema in a SQLite database and insert the rows
of a YAML fixture, in the same format as the ledger section of a test
scenario.

Example:
  colinmig seed --ledger ./ledger.db ./fixtures/ledger.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, args[0])
		},
	}

	opts.bindLedger(cmd)

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions, path string) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	if d, _ := store.ParseDialect(cfg.Ledger.Driver); d != store.DialectSQLite {
		return NewExitError(ExitCommandError, "seed only writes SQLite ledgers")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read fixture", err)
	}
	var fixture testutil.Ledger
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fixture); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse fixture", err)
	}

	_, ledgerDB, err := openLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeQuietly("ledger", ledgerDB)

	ctx := cmd.Context()
	if err := ledger.CreateSchema(ctx, ledgerDB); err != nil {
		return WrapExitError(ExitCommandError, "failed to create ledger schema", err)
	}
	if err := testutil.Seed(ctx, ledgerDB, fixture); err != nil {
		return WrapExitError(ExitCommandError, "failed to seed ledger", err)
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(seedResult{
		Corporations: len(fixture.Corporations),
		Events:       len(fixture.Events),
	})
}

type seedResult struct {
	Corporations int `json:"corporations"`
	Events       int `json:"events"`
}

func (r seedResult) String() string {
	return fmt.Sprintf("seeded %d corporation(s), %d event(s)", r.Corporations, r.Events)
}
