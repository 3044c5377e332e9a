package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// notFound indicates that a requested resource does not exist.
type notFound struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &notFound{message: msg}
}

func (nf notFound) Error() string {
	return nf.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFound)
	return ok
}

// RuleError indicates that a request was well-formed but violates a business rule.
type RuleError struct {
	Err error
}

func NewRuleError(err error) error {
	return &RuleError{Err: err}
}

func (err RuleError) Error() string {
	if err.Err == nil {
		return "business rule violated"
	}
	return err.Err.Error()
}

func (err RuleError) Cause() error { return err.Err }

// IsRuleError reports whether err is (or wraps) a RuleError.
// errors.Cause cannot be used here since RuleError itself implements causer.
func IsRuleError(err error) bool {
	for err != nil {
		if _, ok := err.(*RuleError); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
