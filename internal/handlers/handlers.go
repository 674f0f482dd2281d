// Package handlers translates externally observed lifecycle events into
// task-graph mutations.
//
// Each handler is invoked by the agent runtime as a separate short-lived
// process at a hook point: before a tool runs (pre-action check), when a
// spawned subagent finishes (completion), and when a review process
// finishes (review completion). Handlers communicate back through a
// Decision: allow/deny plus a block reason and informational text.
//
// All handlers treat an absent state document as "orchestration inactive"
// and allow the requested action. All are idempotent against
// already-finalized task states.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/phase"
	"github.com/fyrsmithlabs/waved/internal/session"
	"github.com/fyrsmithlabs/waved/internal/store"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// Decision is the outcome a handler reports to the agent runtime. Reason
// is the block explanation (the runtime's blocking channel); Info is
// advisory text (the informational channel).
type Decision struct {
	Allow  bool
	Reason string
	Info   string
}

func allow(info string) Decision {
	return Decision{Allow: true, Info: info}
}

func deny(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// Handlers wires the event handlers to their collaborators.
type Handlers struct {
	store     store.Store
	sessions  *session.Registry
	validator *phase.Validator
	log       *zap.Logger
}

// New creates the handler set.
func New(st store.Store, sessions *session.Registry, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		store:     st,
		sessions:  sessions,
		validator: phase.NewValidator(),
		log:       log,
	}
}

// loadGraph loads the current document, mapping an absent document to
// (nil, nil): orchestration inactive.
func (h *Handlers) loadGraph(ctx context.Context) (*taskgraph.Graph, error) {
	g, err := h.store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// blockedTaskIDs lists the current wave's tasks that are holding the gate
// in a blocked state.
func blockedTaskIDs(g *taskgraph.Graph) []string {
	var ids []string
	for _, t := range g.WaveTasks(g.CurrentWave) {
		if len(t.CriticalFindings) > 0 || t.ReviewStatus == taskgraph.ReviewBlocked {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func describeGraph(g *taskgraph.Graph) string {
	return fmt.Sprintf("phase=%s wave=%d tasks=%d", g.CurrentPhase, g.CurrentWave, len(g.Tasks))
}
