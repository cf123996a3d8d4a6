// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the caller supplied invalid input.
// Wrap it with the user-facing reason: fmt.Errorf("%w: name is required", ErrValidation).
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates the store observed state that violates the task
// ordering invariant (for example two tasks sharing a position).
var ErrConflict = errors.New("conflict: task ordering is inconsistent")
