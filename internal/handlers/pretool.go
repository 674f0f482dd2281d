package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/phase"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// PreToolInput is the pre-action hook payload.
type PreToolInput struct {
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

// taskTool is the orchestrated spawn tool all mutation must flow through.
const taskTool = "Task"

// editingTools are direct file-editing actions denied while an
// orchestration is active.
var editingTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// PreTool is the pre-action check. Spawns of phase agents are validated
// against the pipeline and, if valid, commit the phase advancement. Direct
// file edits are denied unless the caller is a recognized subagent.
func (h *Handlers) PreTool(ctx context.Context, in PreToolInput) (Decision, error) {
	g, err := h.loadGraph(ctx)
	if err != nil {
		// A document that exists but cannot be read is a loud failure, not
		// a silent allow: something bypassed the mutation protocol.
		return deny(fmt.Sprintf("orchestration state unreadable: %v", err)), nil
	}
	if g == nil {
		return allow("no active orchestration"), nil
	}

	switch {
	case in.ToolName == taskTool:
		return h.checkSpawn(ctx, g, in)
	case editingTools[in.ToolName]:
		return h.checkDirectEdit(g, in), nil
	default:
		return allow(""), nil
	}
}

// checkSpawn validates a phase-agent spawn and commits the transition.
func (h *Handlers) checkSpawn(ctx context.Context, g *taskgraph.Graph, in PreToolInput) (Decision, error) {
	agentType, _ := in.ToolInput["subagent_type"].(string)
	prompt, _ := in.ToolInput["prompt"].(string)

	intent := phase.Classify(agentType, prompt)
	if err := h.validator.Check(g, intent); err != nil {
		return deny(remediation(g, err)), nil
	}

	// Validation passed: commit the advancement and mark the session so
	// the spawned subagent's own tool calls pass the edit check. The
	// transition is re-validated inside the transaction in case a
	// concurrent handler moved the phase.
	_, err := h.store.Update(ctx, func(g *taskgraph.Graph) error {
		if g.CurrentPhase == intent.Phase && intent.Phase == taskgraph.PhaseExecute {
			return nil // execute self-loop, nothing to record
		}
		return g.AdvancePhase(intent.Phase)
	})
	if err != nil {
		return deny(fmt.Sprintf("phase advancement failed: %v", err)), nil
	}

	if h.sessions != nil {
		if err := h.sessions.MarkSubagent(in.SessionID); err != nil {
			h.log.Warn("failed to mark subagent session",
				zap.String("session", in.SessionID), zap.Error(err))
		}
	}
	return allow(fmt.Sprintf("entering phase %s (%s)", intent.Phase, describeGraph(g))), nil
}

// checkDirectEdit denies ad-hoc file edits while orchestration is active,
// unless the caller is a recognized subagent.
func (h *Handlers) checkDirectEdit(g *taskgraph.Graph, in PreToolInput) Decision {
	if h.sessions != nil && h.sessions.IsSubagent(in.SessionID) {
		return allow("")
	}
	reason := fmt.Sprintf(
		"direct %s is denied while an orchestration is active (%s); route changes through the Task tool",
		in.ToolName, describeGraph(g))
	if g.Gate(g.CurrentWave).Blocked {
		if ids := blockedTaskIDs(g); len(ids) > 0 {
			reason += fmt.Sprintf("; wave %d is blocked by tasks: %s",
				g.CurrentWave, strings.Join(ids, ", "))
		}
	}
	return deny(reason)
}

// remediation turns a validation error into an actionable block message.
func remediation(g *taskgraph.Graph, err error) string {
	return fmt.Sprintf("%v (current phase: %s)", err, g.CurrentPhase)
}
