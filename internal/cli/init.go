package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcgov/colin-migrate/internal/ledger"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	dbFlags
	WithLedger bool
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the target schema",
		Long: `Create the target tables and the processing watermark table. Safe to run
more than once.

With --with-ledger the legacy ledger tables are created too, for local
development and test databases.

Example:
  colinmig init --db ./lear.db
  colinmig init --db ./lear.db --ledger ./ledger.db --with-ledger`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	opts.bindTarget(cmd)
	opts.bindLedger(cmd)
	cmd.Flags().BoolVar(&opts.WithLedger, "with-ledger", false, "also create the legacy ledger schema")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	st, err := openTarget(cfg.Target)
	if err != nil {
		return err
	}
	closeQuietly("target", st)
	done := []string{"target"}

	if opts.WithLedger {
		_, ledgerDB, err := openLedger(cfg.Ledger)
		if err != nil {
			return err
		}
		defer closeQuietly("ledger", ledgerDB)
		if err := ledger.CreateSchema(cmd.Context(), ledgerDB); err != nil {
			return WrapExitError(ExitCommandError, "failed to create ledger schema", err)
		}
		done = append(done, "ledger")
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(initResult{Schemas: done})
}

type initResult struct {
	Schemas []string `json:"schemas"`
}

func (r initResult) String() string {
	return fmt.Sprintf("schema ready: %v", r.Schemas)
}
