package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(format string, a ...interface{}) error {
	if len(a) == 0 {
		return goErrors.New(format)
	}
	return fmt.Errorf(format, a...)
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without any of the wrapping context.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// NewFriendlyError creates an error that is printed verbatim by
// util.HandleFatalError.
func NewFriendlyError(format string, a ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, a...)}
}

type withContext struct {
	context string
	err     error
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err withContext) Unwrap() error {
	return err.err
}

// WithContext annotates `err` with a description of what was being done when
// it occurred. It returns nil if `err` is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, err: err}
}

// RootCause strips all the context added by WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(withContext)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. Friendly errors are shown without their context.
func GetPrintableMessage(err error) string {
	if friendly, ok := RootCause(err).(FriendlyError); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}

// Is and As are the standard library's.
var (
	Is = goErrors.Is
	As = goErrors.As
)
