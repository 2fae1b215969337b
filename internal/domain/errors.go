package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrParse signals malformed query text.
	ErrParse = errors.New("parse error")
	// ErrInvalidPipeline signals a query whose stage ordering is not allowed.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrUnknownCategory signals a key lookup for an unregistered category.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrSessionNotOpen signals a write outside of an open warehouse session.
	ErrSessionNotOpen = errors.New("session not open")
	// ErrCorruptLog signals a stored line that is not a JSON object.
	ErrCorruptLog = errors.New("corrupt log")
	// ErrTypeMismatch signals an ordering comparison against a non-numeric value.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrMissingKeyField signals a document without the field its category keys on.
	ErrMissingKeyField = errors.New("missing key field")
	// ErrInvalidIP signals a lookup for something that is not a dotted-quad IPv4 address.
	ErrInvalidIP = errors.New("invalid ipv4 address")
)

// ParseError wraps ErrParse with the offending query text.
type ParseError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s: %q", ErrParse.Error(), e.Pos, e.Reason, e.Input)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a parse error for input at byte offset pos.
func NewParseError(input string, pos int, format string, args ...any) error {
	return &ParseError{Input: input, Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

// CorruptLogError wraps ErrCorruptLog with the log location.
type CorruptLogError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptLogError) Error() string {
	msg := fmt.Sprintf("%s: %s line %d", ErrCorruptLog.Error(), e.Path, e.Line)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptLogError) Unwrap() error { return ErrCorruptLog }
