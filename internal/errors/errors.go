// Package errors wraps the standard errors package with component and
// category metadata so delivery failures can be classified uniformly by
// the retry engine and surfaced with context in logs.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies an error for retry and reporting decisions.
type Category string

const (
	// CategoryUpstreamData marks a value-fetch failure. The affected rule
	// is skipped for the tick; the rule itself is not in an error state.
	CategoryUpstreamData Category = "upstream-data"
	// CategoryDelivery marks a channel send failure eligible for retry.
	CategoryDelivery Category = "delivery"
	// CategoryPersistence marks a datastore failure. The owning job fails
	// and is retried by the work queue.
	CategoryPersistence Category = "persistence"
	// CategoryValidation marks malformed input. Never retried.
	CategoryValidation Category = "validation"
)

// Error carries an underlying error plus component and category metadata.
type Error struct {
	Err       error
	Component string
	Cat       Category
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Category returns the category of err if it is (or wraps) an *Error,
// otherwise the empty category.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Cat
	}
	return ""
}

// Builder assembles an *Error fluently.
type Builder struct {
	err *Error
}

// New starts building an enhanced error around err.
func New(err error) *Builder {
	return &Builder{err: &Error{Err: err}}
}

// Newf starts building an enhanced error from a format string.
func Newf(format string, args ...any) *Builder {
	return &Builder{err: &Error{Err: fmt.Errorf(format, args...)}}
}

// Component records the subsystem the error originated in.
func (b *Builder) Component(name string) *Builder {
	b.err.Component = name
	return b
}

// Category records the error's classification.
func (b *Builder) Category(c Category) *Builder {
	b.err.Cat = c
	return b
}

// Build returns the assembled error.
func (b *Builder) Build() error { return b.err }

// Re-exports so callers need only one errors import.

func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }

// NewStd returns a plain sentinel error, mirroring the standard library.
func NewStd(text string) error { return errors.New(text) }
