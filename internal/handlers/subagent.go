package handlers

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/evidence"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// SubagentInput is the subagent-completion hook payload.
type SubagentInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
}

// SubagentCompleted parses a finished subagent's transcript for a task
// identifier and test evidence, and marks the task implemented.
//
// Replaying the event for an already-completed task is a no-op. A task
// already implemented but missing evidence is re-extracted.
func (h *Handlers) SubagentCompleted(ctx context.Context, in SubagentInput) (Decision, error) {
	g, err := h.loadGraph(ctx)
	if err != nil {
		return Decision{}, err
	}
	if g == nil {
		return allow("no active orchestration"), nil
	}

	if h.sessions != nil {
		if err := h.sessions.ClearSubagent(in.SessionID); err != nil {
			h.log.Warn("failed to clear subagent marker",
				zap.String("session", in.SessionID), zap.Error(err))
		}
	}

	transcript, err := os.ReadFile(in.TranscriptPath)
	if err != nil {
		// Degrades to "evidence missing": logged, never a crash.
		h.log.Warn("transcript unreadable",
			zap.String("path", in.TranscriptPath), zap.Error(err))
		return allow("transcript unreadable; no evidence recorded"), nil
	}
	output := string(transcript)

	taskID, ok := evidence.ExtractTaskID(output)
	if !ok {
		h.log.Warn("no task identifier in transcript",
			zap.String("path", in.TranscriptPath))
		return allow("no task identifier found in transcript; no evidence recorded"), nil
	}

	result, matched := evidence.ExtractTestResult(output)
	newTests := evidence.NewTestsWritten(output)

	var info string
	_, err = h.store.Update(ctx, func(g *taskgraph.Graph) error {
		t := g.Task(taskID)
		if t == nil {
			info = fmt.Sprintf("transcript names unknown task %s; ignored", taskID)
			return nil
		}
		switch {
		case t.Status == taskgraph.TaskCompleted:
			info = fmt.Sprintf("task %s already completed; no change", taskID)
			return nil
		case t.Status == taskgraph.TaskImplemented && t.TestEvidence != "":
			info = fmt.Sprintf("task %s already implemented with evidence; no change", taskID)
			return nil
		}

		t.Status = taskgraph.TaskImplemented
		if matched {
			t.TestsPassed = result.Passed
			t.TestEvidence = result.Summary
			info = fmt.Sprintf("task %s implemented (%s: passed=%v)", taskID, result.Grammar, result.Passed)
		} else {
			t.TestsPassed = false
			t.TestEvidence = ""
			info = fmt.Sprintf("task %s implemented; transcript matched no test grammar", taskID)
			h.log.Warn("no test evidence grammar matched",
				zap.String("task", taskID), zap.String("path", in.TranscriptPath))
		}
		if newTests {
			t.NewTestsWritten = true
		}

		// Flip the gate's impl flag once the whole wave is implemented.
		implDone := true
		for _, wt := range g.WaveTasks(t.Wave) {
			if wt.Status == taskgraph.TaskPending {
				implDone = false
				break
			}
		}
		g.Gate(t.Wave).ImplComplete = implDone
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return allow(info), nil
}
