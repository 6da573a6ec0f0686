package models

import "fmt"

// ParseError marks a source table as unreadable or structurally malformed.
// It is fatal for the whole file: no partial counts, records or partials
// are ever returned alongside one.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidRangeError rejects an aggregation request before any store query.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: %s", e.Reason)
}

// StoreUnavailableError wraps a storage collaborator failure. It is
// propagated unchanged; retrying belongs to the caller, not the core.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
