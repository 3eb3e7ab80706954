// Package errs defines the error taxonomy shared by the reconstruction
// pipeline.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind. The orchestrator decides what a Kind means for the corporation being
// processed:
//   - KindNotFound, KindInvalidFilingType, KindDataIntegrity: skip the event,
//     mark the corporation PARTIAL
//   - KindTimeout: retry the event, then FAILED
//   - KindTransaction: stop the corporation, FAILED, watermark untouched
//   - KindDownstreamNotification: log only
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline errors.
type Kind string

const (
	// KindNotFound indicates a business, filing, party or office does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindInvalidFilingType indicates a legacy filing-type code with no mapping.
	KindInvalidFilingType Kind = "INVALID_FILING_TYPE"

	// KindDataIntegrity indicates mandatory related data is structurally absent.
	KindDataIntegrity Kind = "DATA_INTEGRITY"

	// KindTransaction indicates the filer's apply step failed and was rolled back.
	KindTransaction Kind = "TRANSACTION"

	// KindDownstreamNotification indicates a post-commit notification failed.
	KindDownstreamNotification Kind = "DOWNSTREAM_NOTIFICATION"

	// KindTimeout indicates an event exceeded its processing deadline.
	KindTimeout Kind = "TIMEOUT"

	// KindAlreadyClaimed indicates another run holds the corporation.
	KindAlreadyClaimed Kind = "ALREADY_CLAIMED"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Message string
	CorpNum string
	EventID int64
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.CorpNum != "" && e.EventID != 0 {
		msg = fmt.Sprintf("%s (corp=%s, event=%d)", msg, e.CorpNum, e.EventID)
	} else if e.CorpNum != "" {
		msg = fmt.Sprintf("%s (corp=%s)", msg, e.CorpNum)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// At returns a copy of e annotated with corporation and event.
func (e *Error) At(corpNum string, eventID int64) *Error {
	c := *e
	c.CorpNum = corpNum
	c.EventID = eventID
	return &c
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsInvalidFilingType reports whether err is an unsupported filing type.
func IsInvalidFilingType(err error) bool { return Is(err, KindInvalidFilingType) }

// IsTimeout reports whether err is a per-event timeout.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }

// Skippable reports whether err only invalidates the current event.
func Skippable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindInvalidFilingType, KindDataIntegrity:
		return true
	}
	return false
}

// Warning is a DataIntegrityWarning: logged and counted, never fatal.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

// Warning codes.
const (
	WarnAddressLines     = "ADDRESS_LINES"
	WarnAddressMissing   = "ADDRESS_MISSING"
	WarnDirectorCount    = "DIRECTOR_COUNT"
	WarnSeriesExceeds    = "SERIES_EXCEEDS_CLASS"
	WarnAppointmentDate  = "APPOINTMENT_DATE_DEFAULTED"
	WarnJurisdictionForm = "JURISDICTION_FORMAT"
)
