// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors. Lookups that find no row
// return ErrNotFound rather than sql.ErrNoRows so callers never need to
// import database/sql.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource that belongs to a different parent, such as a ticket type of
// another event. Handlers should translate this into an HTTP 403 or 400.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert collides with an existing row
// or a guarded update finds the row in an unexpected state.
var ErrConflict = errors.New("conflict")

// ErrCapacityExceeded is returned by the capped inventory increment when
// the increment would push quantity_sold past quantity_total.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrUsageExhausted is returned by the capped voucher increment when the
// voucher has already reached its usage limit.
var ErrUsageExhausted = errors.New("voucher usage exhausted")
