package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreadableFile: no encoding/delimiter/sheet combination produced a non-empty table.
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrColumnMappingFailed: no strategy produced date + an amount source.
	ErrColumnMappingFailed = errors.New("column mapping failed")
	// ErrRowParse: a single row could not be converted.
	ErrRowParse = errors.New("row parse error")
	// ErrExternalServiceTimeout: the oracle or the store did not answer in time.
	ErrExternalServiceTimeout = errors.New("external service timeout")
	// ErrExternalService: the oracle or the store failed.
	ErrExternalService = errors.New("external service error")
	// ErrNotFound: the addressed record does not exist.
	ErrNotFound = errors.New("not found")
)

// UnreadableFileError reports the encodings that were attempted for a file.
type UnreadableFileError struct {
	Filename  string
	Attempted []string
	Reason    string
}

func (e *UnreadableFileError) Error() string {
	msg := fmt.Sprintf("cannot read %q", e.Filename)
	if len(e.Attempted) > 0 {
		msg += fmt.Sprintf(" (tried encodings: %s)", strings.Join(e.Attempted, ", "))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnreadableFileError) Is(target error) bool { return target == ErrUnreadableFile }

// ColumnMappingError lists the raw headers so a human can map them by hand.
type ColumnMappingError struct {
	Headers []string
	Missing []string
	Partial map[string]string
	Hints   []string
}

func (e *ColumnMappingError) Error() string {
	quoted := make([]string, len(e.Headers))
	for i, h := range e.Headers {
		quoted[i] = "'" + h + "'"
	}
	msg := fmt.Sprintf("could not map required columns %s; found columns: %s",
		strings.Join(e.Missing, ", "), strings.Join(quoted, ", "))
	for _, h := range e.Hints {
		msg += "; hint: " + h
	}
	return msg
}

func (e *ColumnMappingError) Is(target error) bool { return target == ErrColumnMappingFailed }

// RowParseError is a row-level failure. Row is 1-based in data-row order.
type RowParseError struct {
	Row    int
	Reason string
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *RowParseError) Is(target error) bool { return target == ErrRowParse }

// ExternalServiceError wraps a failure of the oracle or the store.
type ExternalServiceError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *ExternalServiceError) Error() string {
	kind := "error"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("%s %s: %v", e.Service, kind, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool {
	if e.Timeout {
		return target == ErrExternalServiceTimeout
	}
	return target == ErrExternalService
}
