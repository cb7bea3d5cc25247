package importing

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures by the phase that produced them.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindParse       Kind = "parse"
	KindStoreRead   Kind = "store_read"
	KindTransaction Kind = "transaction"
	KindConflict    Kind = "conflict"
)

// Error is returned by every Service operation that fails. Message is safe
// to show to API callers; Err carries the underlying detail.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// publicMessage returns the caller-safe text of err without the wrapped
// driver or I/O detail.
func publicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "import failed"
}

func validationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func parseError(err error) *Error {
	return &Error{Kind: KindParse, Message: "spreadsheet could not be read as a beneficiary table", Err: err}
}

func storeReadError(err error) *Error {
	return &Error{Kind: KindStoreRead, Message: "failed to read existing beneficiaries", Err: err}
}

func transactionError(err error) *Error {
	return &Error{Kind: KindTransaction, Message: "import failed and was rolled back; resubmit the file", Err: err}
}

func conflictError(formationID string) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf("another import for formation %s is in progress", formationID)}
}
