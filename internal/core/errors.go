package core

import (
	"errors"
	"fmt"
)

// ErrorKind tags the variant of an Error. The set is closed: callers switch on it
// exhaustively when mapping errors onto transport responses.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindConfiguration
	KindMissingSignature
	KindInvalidSignature
	KindMalformedPayload
	KindValidation
	KindNotFound
	KindPermission
	KindTransient
	KindAnalysis
	KindPayment
	KindCircuitOpen
)

var kindCodes = map[ErrorKind]string{
	KindUnexpected:       "INTERNAL_ERROR",
	KindConfiguration:    "CONFIGURATION_ERROR",
	KindMissingSignature: "MISSING_SIGNATURE",
	KindInvalidSignature: "INVALID_SIGNATURE",
	KindMalformedPayload: "MALFORMED_PAYLOAD",
	KindValidation:       "VALIDATION_ERROR",
	KindNotFound:         "NOT_FOUND",
	KindPermission:       "PERMISSION_DENIED",
	KindTransient:        "SERVICE_UNAVAILABLE",
	KindAnalysis:         "GEMINI_SERVICE_ERROR",
	KindPayment:          "PAYMENT_ERROR",
	KindCircuitOpen:      "CIRCUIT_OPEN",
}

// Code returns the stable machine-readable code of the kind.
func (k ErrorKind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindUnexpected]
}

func (k ErrorKind) String() string {
	return k.Code()
}

// Error is the application's tagged error. Kind selects the variant; Details carries
// the variant-specific payload (field names, status codes, service names).
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns the error with an additional payload entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError builds an Error of the given kind using the kind's default code.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.Code(),
		Message: message,
		Err:     err,
	}
}

// Errorf is a convenience constructor with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...), nil)
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindUnexpected when err carries none.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err is an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether err should count against a circuit breaker and be retried.
// Errors without a kind are treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTransient, KindUnexpected, KindAnalysis, KindCircuitOpen:
		return true
	default:
		return false
	}
}
