package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	dbFlags
	Corp   string
	Status string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration progress",
		Long: `Show the processing watermark of one corporation, with the events it
skipped, or list every corporation of the configured flow.

Example:
  colinmig status --db ./lear.db
  colinmig status --db ./lear.db --status FAILED
  colinmig status --db ./lear.db --corp CP0001234 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	opts.bindTarget(cmd)
	cmd.Flags().StringVar(&opts.Corp, "corp", "", "show one corporation")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only list corporations with this status (PROCESSING|COMPLETED|FAILED|PARTIAL)")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	status := store.Status(strings.ToUpper(opts.Status))
	switch status {
	case "", store.StatusProcessing, store.StatusCompleted, store.StatusFailed, store.StatusPartial:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q", opts.Status))
	}

	st, err := openTarget(cfg.Target)
	if err != nil {
		return err
	}
	defer closeQuietly("target", st)

	ctx := cmd.Context()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Corp != "" {
		wm, err := st.Watermark(ctx, cfg.Scope(), opts.Corp)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read watermark", err)
		}
		if wm == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("corporation %s has not been processed", opts.Corp))
		}
		skips, err := st.Skips(ctx, cfg.Scope(), opts.Corp)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read skipped events", err)
		}
		cs := corpStatus{Watermark: wm, Skipped: skips}
		biz, err := st.Business(ctx, filing.Identifier(opts.Corp))
		switch {
		case err == nil:
			cs.Business = &biz
		case !errors.Is(err, sql.ErrNoRows):
			return WrapExitError(ExitCommandError, "failed to read business", err)
		}
		return out.Success(cs)
	}

	wms, err := st.ListWatermarks(ctx, cfg.Scope(), status)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list watermarks", err)
	}
	return out.Success(watermarkList(wms))
}

type corpStatus struct {
	*store.Watermark
	Skipped  []store.Skip          `json:"skipped"`
	Business *store.BusinessRecord `json:"business,omitempty"`
}

func (s corpStatus) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  last event %s", s.CorpNum, s.Status, eventRef(s.LastProcessedEventID))
	if s.FailedEventID != nil {
		fmt.Fprintf(&b, "\n  failed at event %d: %s", *s.FailedEventID, s.LastError)
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "\n  run %s, updated %s", s.RunID, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if s.Business != nil {
		fmt.Fprintf(&b, "\n  business %s %q (%s, %s)", s.Business.Identifier, s.Business.LegalName, s.Business.LegalType, s.Business.State)
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(&b, "\n  skipped event %d (%s): %s", sk.EventID, sk.ErrorKind, sk.Reason)
	}
	return b.String()
}

type watermarkList []store.Watermark

func (l watermarkList) String() string {
	if len(l) == 0 {
		return "no corporations processed"
	}
	var b strings.Builder
	for i, wm := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-10s %-10s %s", wm.CorpNum, wm.Status, eventRef(wm.LastProcessedEventID))
		if wm.FailedEventID != nil {
			fmt.Fprintf(&b, "  failed at %d", *wm.FailedEventID)
		}
	}
	return b.String()
}

func eventRef(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
