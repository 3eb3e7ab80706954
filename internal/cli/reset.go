package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	dbFlags
	Corp string
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Release a stuck or failed corporation",
		Long: `Release the claim of a corporation left PROCESSING by a crashed run, or
clear a FAILED corporation, so the next run picks it up again.

The watermark is not moved: processing resumes after the last committed
event.

Example:
  colinmig reset --db ./lear.db --corp CP0001234`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, opts)
		},
	}

	opts.bindTarget(cmd)
	cmd.Flags().StringVar(&opts.Corp, "corp", "", "corporation number (required)")
	_ = cmd.MarkFlagRequired("corp")

	return cmd
}

func runReset(cmd *cobra.Command, opts *ResetOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	st, err := openTarget(cfg.Target)
	if err != nil {
		return err
	}
	defer closeQuietly("target", st)

	ok, err := st.Reset(cmd.Context(), cfg.Scope(), opts.Corp, time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reset corporation", err)
	}
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("corporation %s is not PROCESSING or FAILED", opts.Corp))
	}
	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).
		Success(resetResult{CorpNum: opts.Corp, Reset: true})
}

type resetResult struct {
	CorpNum string `json:"corp_num"`
	Reset   bool   `json:"reset"`
}

func (r resetResult) String() string {
	return fmt.Sprintf("%s released; the next run resumes after its watermark", r.CorpNum)
}
