package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/bcgov/colin-migrate/internal/errs"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A corporation failed, a scenario failed, or the run was interrupted
	ExitCommandError = 2 // Command error (bad config, database unreachable, unknown corporation)
)

// Error codes reported in CLIError.Code. Pipeline errors that reach the
// command line are reported as "E_" followed by their errs.Kind.
const (
	CodeCommand     = "E_COMMAND"
	CodeFailed      = "E_FAILED"
	CodeCorpFailed  = "E_CORP_FAILED"
	CodeInterrupted = "E_INTERRUPTED"
	CodeTestFailed  = "E_TEST_FAILED"
)

// ExitError is a command failure with a process exit code and, optionally,
// the error code it is reported under.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Reason  string // CLIError code; derived from Code and Err when empty
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WithReason sets the error code the failure is reported under.
func (e *ExitError) WithReason(reason string) *ExitError {
	e.Reason = reason
	return e
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// describe returns the code and details a failure is reported with. A
// classified pipeline error anywhere in the chain names the corporation and
// event it happened at.
func describe(err error) (string, any) {
	var (
		exitErr *ExitError
		pipeErr *errs.Error
		code    = CodeFailed
		details any
	)
	if errors.As(err, &pipeErr) {
		code = "E_" + string(pipeErr.Kind)
		if pipeErr.CorpNum != "" {
			d := map[string]any{"corp_num": pipeErr.CorpNum}
			if pipeErr.EventID != 0 {
				d["event_id"] = pipeErr.EventID
			}
			details = d
		}
	}
	if errors.As(err, &exitErr) {
		switch {
		case exitErr.Reason != "":
			code = exitErr.Reason
		case pipeErr == nil && exitErr.Code == ExitCommandError:
			code = CodeCommand
		}
	}
	return code, details
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // CodeCommand, "E_TRANSACTION", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // corporation and event, when known
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt, so payloads implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports a command failure under the code describe derives for it.
func (f *OutputFormatter) Fail(err error) error {
	code, details := describe(err)
	return f.Error(code, err.Error(), details)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: out, ErrWriter: errOut, Verbose: opts.Verbose}
}

// Execute runs colinmig with args and returns the process exit code. A
// failure is written to stderr in the selected format, or as text when the
// format flag itself was invalid.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		f := newFormatter(opts, stderr, stderr)
		if !slices.Contains(ValidFormats, f.Format) {
			f.Format = "text"
		}
		_ = f.Fail(err)
	}
	return GetExitCode(err)
}
