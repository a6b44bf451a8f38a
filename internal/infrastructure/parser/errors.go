package parser

import (
	"errors"
	"fmt"
)

// Parse failure kinds. Every error returned by the page parsers wraps exactly one of them.
var (
	ErrMissingNode      = errors.New("missing node")
	ErrInvalidID        = errors.New("missing or invalid id")
	ErrMissingThreadID  = errors.New("missing comment list id")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingCommentID = errors.New("missing comment id")
	ErrMissingPostID    = errors.New("missing post id")
	ErrNoEntries        = errors.New("no comment entries")
	ErrInvalidRating    = errors.New("invalid rating")
)

// ParseError tells why a page could not be turned into records.
type ParseError struct {
	Kind   error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "parse: " + e.Kind.Error()
	}
	return fmt.Sprintf("parse: %s: %s", e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func fail(kind error, format string, args ...any) error {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
