package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a posting/allocation failure in a form callers can branch on.
type Code string

const (
	CodeUnknownInvoice         Code = "UnknownInvoice"
	CodeInvoiceNotPayable      Code = "InvoiceNotPayable"
	CodeNonPositiveAllocation  Code = "NonPositiveAllocation"
	CodeOverAllocation         Code = "OverAllocation"
	CodeReceiptOverdrawn       Code = "ReceiptOverdrawn"
	CodeInvalidAccountPair     Code = "InvalidAccountPair"
	CodeNonPositiveAmount      Code = "NonPositiveAmount"
	CodeInvalidPeriod          Code = "InvalidPeriod"
	CodeInvalidSource          Code = "InvalidSource"
	CodeAlreadyPosted          Code = "AlreadyPosted"
	CodeNotPosted              Code = "NotPosted"
	CodeAlreadyReversed        Code = "AlreadyReversed"
	CodeEmptyReason            Code = "EmptyReason"
	CodeReceiptLocked          Code = "ReceiptLocked"
	CodeInvalidStatus          Code = "InvalidStatus"
	CodeInvalidOperation       Code = "InvalidOperation"
	CodeInvalidInput           Code = "InvalidInput"
	CodeNotFound               Code = "NotFound"
	CodeConcurrentModification Code = "ConcurrentModification"
	CodeIntegrityViolation     Code = "IntegrityViolation"
	CodeCancelled              Code = "Cancelled"
)

// Kind groups codes by how a caller is expected to react.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindIntegrity
	KindCancelled
)

// Kind returns the category of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound:
		return KindNotFound
	case CodeConcurrentModification:
		return KindConflict
	case CodeIntegrityViolation:
		return KindIntegrity
	case CodeCancelled:
		return KindCancelled
	default:
		return KindValidation
	}
}

// Error is a single coded failure. Two errors are equal under errors.Is when
// their codes match, so sentinels can be compared against detailed instances.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf builds a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is
var (
	ErrUnknownInvoice         = &Error{Code: CodeUnknownInvoice}
	ErrInvoiceNotPayable      = &Error{Code: CodeInvoiceNotPayable}
	ErrNonPositiveAllocation  = &Error{Code: CodeNonPositiveAllocation}
	ErrOverAllocation         = &Error{Code: CodeOverAllocation}
	ErrReceiptOverdrawn       = &Error{Code: CodeReceiptOverdrawn}
	ErrInvalidAccountPair     = &Error{Code: CodeInvalidAccountPair}
	ErrNonPositiveAmount      = &Error{Code: CodeNonPositiveAmount}
	ErrInvalidPeriod          = &Error{Code: CodeInvalidPeriod}
	ErrInvalidSource          = &Error{Code: CodeInvalidSource}
	ErrAlreadyPosted          = &Error{Code: CodeAlreadyPosted}
	ErrNotPosted              = &Error{Code: CodeNotPosted}
	ErrAlreadyReversed        = &Error{Code: CodeAlreadyReversed}
	ErrEmptyReason            = &Error{Code: CodeEmptyReason}
	ErrReceiptLocked          = &Error{Code: CodeReceiptLocked}
	ErrInvalidStatus          = &Error{Code: CodeInvalidStatus}
	ErrInvalidOperation       = &Error{Code: CodeInvalidOperation}
	ErrInvalidInput           = &Error{Code: CodeInvalidInput}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification}
	ErrIntegrityViolation     = &Error{Code: CodeIntegrityViolation}
	ErrCancelled              = &Error{Code: CodeCancelled}
)

// Violation is one problem found while validating a request.
type Violation struct {
	Code      Code   `json:"code"`
	InvoiceID uint   `json:"invoice_id,omitempty"`
	Line      int    `json:"line,omitempty"`
	Message   string `json:"message"`
}

// ValidationError carries every violation found, never just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Code, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches a sentinel *Error when any violation has its code.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Has(t.Code)
}

// Has reports whether a violation with the given code is present.
func (e *ValidationError) Has(code Code) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// CodeOf extracts the code of a ledger error, or "" for foreign errors.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) && len(ve.Violations) > 0 {
		return ve.Violations[0].Code
	}
	return ""
}
