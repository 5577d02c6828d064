// Package fault classifies failures so callers can decide between re-prompting
// the user, retrying the call, or giving up.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind int

const (
	// KindService is a non-retryable refusal from an external service.
	KindService Kind = iota
	// KindInput is malformed user input. The user can fix it by re-sending.
	KindInput
	// KindTransient covers network failures and overloaded services.
	KindTransient
	// KindFatal means the bot is misconfigured (missing key, bad credentials).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "service"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Input(op string, err error) error     { return newError(KindInput, op, err) }
func Transient(op string, err error) error { return newError(KindTransient, op, err) }
func Service(op string, err error) error   { return newError(KindService, op, err) }
func Fatal(op string, err error) error     { return newError(KindFatal, op, err) }

// Inputf builds an input error with a formatted message.
func Inputf(format string, args ...any) error {
	return &Error{Kind: KindInput, Err: fmt.Errorf(format, args...)}
}

// Fatalf builds a configuration error with a formatted message.
func Fatalf(format string, args ...any) error {
	return &Error{Kind: KindFatal, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost classified error in err's chain.
// Unclassified network errors count as transient, everything else as service.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	return KindService
}

func IsInput(err error) bool     { return err != nil && KindOf(err) == KindInput }
func IsTransient(err error) bool { return err != nil && KindOf(err) == KindTransient }
func IsFatal(err error) bool     { return err != nil && KindOf(err) == KindFatal }

// FromStatus classifies a non-2xx HTTP response.
func FromStatus(op string, status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Fatal(op, err)
	case status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500:
		return Transient(op, err)
	default:
		return Service(op, err)
	}
}
