// Package models defines the content records produced by the extractors and
// the typed errors they fail with.
package models

import "fmt"

// InvalidIdentifierError represents an identifier that does not have the
// platform's expected shape. It is raised before any I/O.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s identifier %q", e.Kind, e.Value)
}

// StructureReason classifies a missing page structure
type StructureReason string

const (
	ReasonWrongIdentifier StructureReason = "wrong-identifier"
	ReasonUnknown         StructureReason = "unknown"
)

// StructureNotFoundError represents a page whose expected structure never
// appeared
type StructureNotFoundError struct {
	URL    string
	Reason StructureReason
	Err    error
}

func (e *StructureNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("page structure not found at %s (%s)", e.URL, e.Reason)
	}
	return fmt.Sprintf("page structure not found at %s (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *StructureNotFoundError) Unwrap() error { return e.Err }

// WrongIdentifier reports whether the page showed a "not found" marker.
func (e *StructureNotFoundError) WrongIdentifier() bool {
	return e.Reason == ReasonWrongIdentifier
}

// PaginationError represents a listing page with neither a next nor a
// disabled-next control
type PaginationError struct {
	URL      string
	Page     int
	Attempts int
	Err      error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("no pagination control on page %d of %s after %d attempts: %v", e.Page, e.URL, e.Attempts, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// RemoteFetchError represents a feed or API call that failed or returned an
// unusable payload. StatusCode is 0 when no response was received.
type RemoteFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (HTTP %d): %v", e.URL, e.StatusCode, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// UnknownLiveStatusError represents a broadcast page matching none of the
// status signals
type UnknownLiveStatusError struct {
	ID  string
	URL string
}

func (e *UnknownLiveStatusError) Error() string {
	return fmt.Sprintf("cannot classify status of live %s at %s", e.ID, e.URL)
}

// ExtractionError represents a required field that could not be read
type ExtractionError struct {
	Step string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("content extraction failed at %s: %v", e.Step, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
