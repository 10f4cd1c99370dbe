// Package store defines the errors shared by snapshot store
// implementations.
package store

import "errors"

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("not found")
