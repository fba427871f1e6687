// ABOUTME: Error taxonomy for the proxy
// ABOUTME: Typed failures so handlers can map errors to HTTP responses

package models

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated means the request carried no valid session token.
// Never retried.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidCredentials means the login username/password was rejected
// by the upstream store. Surfaced verbatim, never retried.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UpstreamError is an HTTP or upstream-reported failure from the record
// store, carrying the status and the most specific detail available.
type UpstreamError struct {
	Status int
	Detail string
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Detail)
}

// Retryable reports whether the failure is transient. Only server-side
// faults qualify; 4xx responses indicate a caller or authorization fault.
func (e *UpstreamError) Retryable() bool {
	return e.Status >= 500
}

// ActivityFetchError means one of the two audit feeds could not be
// fetched. The narrative is all-or-nothing, so no partial result exists.
type ActivityFetchError struct {
	Ref RecordRef
	Err error
}

func (e *ActivityFetchError) Error() string {
	return fmt.Sprintf("activity fetch failed for %s/%s: %v", e.Ref.Table, e.Ref.SysID, e.Err)
}

func (e *ActivityFetchError) Unwrap() error { return e.Err }

// UpdateStep names one of the two independent writes in an update.
type UpdateStep string

const (
	UpdateStepFields  UpdateStep = "fields"
	UpdateStepJournal UpdateStep = "journal"
)

// UpdateError reports which write of the update pipeline failed. The
// pipeline does not roll back, so the other step may have applied.
type UpdateError struct {
	Step UpdateStep
	Err  error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update failed at %s step: %v", e.Step, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
