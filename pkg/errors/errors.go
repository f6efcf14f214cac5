// Package errors contains the error helpers used throughout lds. Errors are
// wrapped with short lowercase context strings as they travel up the stack,
// so that the final message reads like "run engine: walk source: ...".
package errors

import (
	"fmt"

	pkgErrors "github.com/pkg/errors"
)

// New returns an error with the given message.
func New(msg string) error {
	return pkgErrors.New(msg)
}

// Errorf formats an error message.
func Errorf(format string, args ...interface{}) error {
	return pkgErrors.Errorf(format, args...)
}

// WithContext annotates err with the given context. The resulting error
// message is "context: err".
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return pkgErrors.WithMessage(err, context)
}

// RootCause returns the innermost error that isn't a wrapper added by
// WithContext.
func RootCause(err error) error {
	return pkgErrors.Cause(err)
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without the context chain.
type FriendlyError interface {
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error with a message that's meant to be read by
// users.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// GetPrintableMessage returns the message that should be shown to the user
// for err. If the root cause has a friendly message, it's used instead of the
// full context chain.
func GetPrintableMessage(err error) string {
	if friendly, ok := RootCause(err).(FriendlyError); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
