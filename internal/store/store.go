// Package store loads template text by name from a directory or a SQLite
// database and keeps compiled templates fresh as their sources change.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a source has no template under a name.
var ErrNotFound = errors.New("template not found")

// Source returns the text of a named template together with a stamp that
// moves forward whenever the text changes.
type Source interface {
	Load(ctx context.Context, name string) (text string, stamp time.Time, err error)
}
