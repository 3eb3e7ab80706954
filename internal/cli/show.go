package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bcgov/colin-migrate/internal/errs"
	"github.com/bcgov/colin-migrate/internal/filing"
	"github.com/bcgov/colin-migrate/internal/pipeline"
	"github.com/bcgov/colin-migrate/internal/policy"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	dbFlags
	Corp      string
	Event     int64
	Canonical bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the filing one ledger event would produce",
		Long: `Rebuild the filing document for a single ledger event and print it,
without claiming the corporation or writing to the target.

Corrections later in the ledger are folded in as a run would fold them.

Example:
  colinmig show --ledger ./ledger.db --corp CP0005678 --event 200
  colinmig show --ledger ./ledger.db --corp CP0005678 --event 200 --canonical`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts)
		},
	}

	opts.bindLedger(cmd)
	cmd.Flags().StringVar(&opts.Corp, "corp", "", "corporation number (required)")
	cmd.Flags().Int64Var(&opts.Event, "event", 0, "ledger event id (required)")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print RFC 8785 canonical JSON instead of indented JSON")
	_ = cmd.MarkFlagRequired("corp")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions) error {
	cfg, err := loadConfig(opts.RootOptions, opts.dbFlags)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	table, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load filing policy", err)
	}
	reader, ledgerDB, err := openLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	defer closeQuietly("ledger", ledgerDB)

	// Reconstruct reads the ledger only; no target store is needed.
	p := pipeline.New(reader, nil, table, pipeline.Config{Scope: cfg.Scope()})
	res, err := p.Reconstruct(cmd.Context(), opts.Corp, opts.Event)
	if err != nil {
		if errs.IsNotFound(err) || errs.IsInvalidFilingType(err) {
			return WrapExitError(ExitCommandError, "cannot rebuild event", err)
		}
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}

	hash, err := filing.Hash(res.Document)
	if err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}
	var body []byte
	if opts.Canonical {
		body, err = filing.Canonical(res.Document)
	} else {
		body, err = json.MarshalIndent(res.Document, "", "  ")
	}
	if err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(shownFiling{
		CorpNum:    opts.Corp,
		EventID:    opts.Event,
		FilingType: string(res.FilingType),
		Hash:       hash,
		Warnings:   res.Warnings,
		Document:   json.RawMessage(body),
	})
}

type shownFiling struct {
	CorpNum    string          `json:"corp_num"`
	EventID    int64           `json:"event_id"`
	FilingType string          `json:"filing_type"`
	Hash       string          `json:"doc_hash"`
	Warnings   []errs.Warning  `json:"warnings"`
	Document   json.RawMessage `json:"document"`
}

func (s shownFiling) String() string {
	var b strings.Builder
	b.Write(s.Document)
	fmt.Fprintf(&b, "\n# %s event %d -> %s %s", s.CorpNum, s.EventID, s.FilingType, s.Hash)
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\n# warning %s", w)
	}
	return b.String()
}
