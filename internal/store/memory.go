package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// MemStore is an in-memory Store for tests. It serializes updates with a
// mutex and hands out deep copies so callers cannot mutate shared state
// outside a transaction.
type MemStore struct {
	mu    sync.Mutex
	graph *taskgraph.Graph
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load(ctx context.Context) (*taskgraph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ErrNotFound
	}
	return deepCopy(s.graph)
}

func (s *MemStore) Update(ctx context.Context, fn Transform) (*taskgraph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil, ErrNotFound
	}
	g, err := deepCopy(s.graph)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("transform produced invalid graph: %w", err)
	}
	s.graph = g
	return deepCopy(g)
}

func (s *MemStore) Replace(ctx context.Context, g *taskgraph.Graph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid graph: %w", err)
	}
	copied, err := deepCopy(g)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = copied
	return nil
}

func (s *MemStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = nil
	return nil
}

// deepCopy round-trips through JSON, the same codec the file store uses.
func deepCopy(g *taskgraph.Graph) (*taskgraph.Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("copy graph: %w", err)
	}
	var out taskgraph.Graph
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy graph: %w", err)
	}
	return &out, nil
}
