// Package repository defines error values that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as the auth service and handlers to distinguish between
// failure scenarios, e.g. a duplicate registration versus an
// infrastructure error.
package repository

import "errors"

// ErrEmailExists is returned when an insert collides with the unique
// index on users.email. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no rows. It wraps the
// semantics of sql.ErrNoRows without leaking database/sql upward.
var ErrNotFound = errors.New("not found")
