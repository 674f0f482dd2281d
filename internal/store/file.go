package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/waved/internal/lockdir"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

const (
	// permAtRest keeps the document read-only between transactions.
	permAtRest = os.FileMode(0o400)

	// permInTransaction relaxes the document for the duration of a commit.
	permInTransaction = os.FileMode(0o600)
)

// FileStore persists the graph as a JSON file guarded by a directory lock.
type FileStore struct {
	path  string
	locks *lockdir.Manager
}

// NewFileStore creates a store for the document at path. locks may be nil,
// in which case a manager with default bounds is used.
func NewFileStore(path string, locks *lockdir.Manager) *FileStore {
	if locks == nil {
		locks = lockdir.New(0, 0)
	}
	return &FileStore{path: path, locks: locks}
}

// Path returns the absolute document path.
func (s *FileStore) Path() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return s.path
	}
	return abs
}

// LockPath returns the lock directory guarding the document.
func (s *FileStore) LockPath() string {
	return s.path + ".lock"
}

// Load reads the current document. Reads never take the mutation lock;
// atomic rename guarantees they see a complete serialization.
func (s *FileStore) Load(ctx context.Context) (*taskgraph.Graph, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read task graph: %w", err)
	}
	var g taskgraph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode task graph %s: %w", s.path, err)
	}
	return &g, nil
}

// Update applies fn under the mutation lock and commits atomically.
func (s *FileStore) Update(ctx context.Context, fn Transform) (*taskgraph.Graph, error) {
	var committed *taskgraph.Graph
	err := s.locks.WithLock(s.LockPath(), func() error {
		if err := os.Chmod(s.path, permInTransaction); err != nil {
			if os.IsNotExist(err) {
				return ErrNotFound
			}
			return fmt.Errorf("relax permissions on %s: %w", s.path, err)
		}
		// Restore read-only even when the transform or commit fails.
		defer func() {
			_ = os.Chmod(s.path, permAtRest)
		}()

		g, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("transform produced invalid graph: %w", err)
		}
		if err := s.commit(g); err != nil {
			return err
		}
		committed = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// Replace substitutes the whole document, creating parent directories and
// the file itself if needed.
func (s *FileStore) Replace(ctx context.Context, g *taskgraph.Graph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid graph: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return s.locks.WithLock(s.LockPath(), func() error {
		// Chmod is conditional: the document may not exist yet.
		if err := os.Chmod(s.path, permInTransaction); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("relax permissions on %s: %w", s.path, err)
		}
		return s.commit(g)
	})
}

// Delete removes the document and any stale lock. It is the documented
// manual escape hatch and is idempotent.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Chmod(s.path, permInTransaction); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("relax permissions on %s: %w", s.path, err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove task graph: %w", err)
	}
	return s.locks.Release(s.LockPath())
}

// commit serializes g to a temporary file in the document's directory and
// renames it over the target, then drops permissions back to read-only.
func (s *FileStore) commit(g *taskgraph.Graph) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task graph: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".task-graph-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit task graph: %w", err)
	}
	if err := os.Chmod(s.path, permAtRest); err != nil {
		return fmt.Errorf("restore read-only permissions: %w", err)
	}
	return nil
}
