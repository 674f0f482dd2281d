// Package store persists the task-graph document with an atomic
// read-modify-write discipline.
//
// The document is held at read-only permission between transactions so that
// any write outside the mutation protocol fails loudly at the filesystem.
// Mutations serialize through a directory lock, apply a pure transform to
// the loaded document, and commit via write-to-temp plus atomic rename, so
// a concurrent reader observes either the pre- or post-transaction content
// but never a torn write.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// ErrNotFound is returned when no state document exists, which callers
// treat as "orchestration inactive".
var ErrNotFound = errors.New("task graph not found")

// Transform mutates a loaded graph in place. Returning an error aborts the
// transaction without writing.
type Transform func(*taskgraph.Graph) error

// Store is the persistence abstraction the engine is written against.
// FileStore is the production implementation; MemStore backs tests.
type Store interface {
	// Load returns the current document without taking the mutation lock.
	Load(ctx context.Context) (*taskgraph.Graph, error)

	// Update runs fn against the current document under the mutation lock
	// and commits the result atomically. The returned graph is the
	// committed state.
	Update(ctx context.Context, fn Transform) (*taskgraph.Graph, error)

	// Replace substitutes the whole document, creating it if absent. Used
	// once, at graph creation.
	Replace(ctx context.Context, g *taskgraph.Graph) error

	// Delete removes the document. The manual reset escape hatch.
	Delete(ctx context.Context) error
}
