// Package relerr defines the single fatal error type surfaced by relpo.
//
// Every fatal condition is reported as an *Error carrying a Kind, so callers
// can tell configuration problems apart from bad input documents, resolution
// failures and transfer failures without matching on message text.
package relerr

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error.
type Kind int

const (
	// Unknown is reported by KindOf for errors that are not *Error.
	Unknown Kind = iota
	// Config covers missing keys, directories and unreadable files.
	Config
	// Format covers unparseable versions and malformed or unsupported documents.
	Format
	// Resolution covers unknown dependency types and absent platforms.
	Resolution
	// Transfer covers failed dependency fetches.
	Transfer
	// Repository covers version control query failures.
	Repository
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Format:
		return "format"
	case Resolution:
		return "resolution"
	case Transfer:
		return "transfer"
	case Repository:
		return "repository"
	default:
		return "unknown"
	}
}

// Conditions matched with errors.Is.
var (
	ErrMissingKey             = errors.New("missing key")
	ErrNotFound               = errors.New("not found")
	ErrInvalidVersion         = errors.New("invalid version")
	ErrMalformedDocument      = errors.New("malformed document")
	ErrUnsupportedLockVersion = errors.New("unsupported lock version")
	ErrUnknownEnvironment     = errors.New("unknown environment")
	ErrUnknownDependencyType  = errors.New("unknown dependency type")
	ErrMissingPlatform        = errors.New("missing platform")
	ErrDependencyFetch        = errors.New("dependency fetch failed")
	ErrNotRepository          = errors.New("not a repository")
	ErrNameVersion            = errors.New("name and version unavailable")
)

// Error is a fatal relpo error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the condition or cause the error was built from.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates an error of the given kind wrapping cause.
func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Configf creates a Config error.
func Configf(cause error, format string, args ...any) *Error {
	return New(Config, cause, format, args...)
}

// Formatf creates a Format error.
func Formatf(cause error, format string, args ...any) *Error {
	return New(Format, cause, format, args...)
}

// Resolutionf creates a Resolution error.
func Resolutionf(cause error, format string, args ...any) *Error {
	return New(Resolution, cause, format, args...)
}

// Transferf creates a Transfer error.
func Transferf(cause error, format string, args ...any) *Error {
	return New(Transfer, cause, format, args...)
}

// Repositoryf creates a Repository error.
func Repositoryf(cause error, format string, args ...any) *Error {
	return New(Repository, cause, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
