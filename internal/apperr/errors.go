// Package apperr classifies failures crossing component boundaries.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

// Kind is the failure category of an error.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindStore      Kind = "store"
	KindGateway    Kind = "gateway"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind        Kind
	Op          string
	Msg         string
	Err         error
	CrossOrigin bool
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func Store(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Msg: "store operation failed", Err: err}
}

func Gateway(op, msg string, err error) error {
	return &Error{Kind: KindGateway, Op: op, Msg: msg, Err: err}
}

func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

// crossOriginPattern matches the failure signatures browsers and relays
// produce when a cross-origin request is blocked.
var crossOriginPattern = regexp.MustCompile(`(?i)(cors|cross-origin|failed to fetch|access-control-allow-origin)`)

// Network wraps a transport failure. Failures that look like a blocked
// cross-origin call are flagged so the caller can point at the local relay.
func Network(op string, err error) error {
	e := &Error{Kind: KindNetwork, Op: op, Msg: "network error", Err: err}
	if err != nil && crossOriginPattern.MatchString(err.Error()) {
		e.CrossOrigin = true
	}
	return e
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the response status used at the HTTP boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RelayHint is appended to cross-origin network failures.
const RelayHint = "the payment gateway could not be reached directly; start the local relay and set MPESA_RELAY_URL"

// Message produces the human-readable text shown to end users.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindNetwork:
		if e.CrossOrigin {
			return RelayHint
		}
		return "network error contacting payment gateway"
	case KindStore:
		return "could not save your changes, please try again"
	case KindInternal:
		return "internal error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Error()
}
