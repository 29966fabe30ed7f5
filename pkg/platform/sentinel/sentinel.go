// Package sentinel holds infrastructure facts that stores and allocators
// return, optionally wrapped. Services translate them into domain errors;
// validation problems go straight to pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound: no record with that stable ID or key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a stable ID or record key is already taken.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: a backing service (database, counter) did not answer.
	ErrUnavailable = errors.New("unavailable")
)
