package handlers

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/evidence"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// ReviewInput is the review-completion hook payload. TaskID may be empty,
// in which case the reviewer's output is scanned for one.
type ReviewInput struct {
	SessionID  string `json:"session_id"`
	TaskID     string `json:"task_id,omitempty"`
	OutputPath string `json:"output_path"`
}

// ReviewCompleted parses CRITICAL:/ADVISORY: findings from a review
// process's output and records the task's review outcome. Critical
// findings block the task and propagate a blocked flag to the wave gate.
func (h *Handlers) ReviewCompleted(ctx context.Context, in ReviewInput) (Decision, error) {
	g, err := h.loadGraph(ctx)
	if err != nil {
		return Decision{}, err
	}
	if g == nil {
		return allow("no active orchestration"), nil
	}

	output, readErr := os.ReadFile(in.OutputPath)
	if readErr != nil {
		h.log.Warn("review output unreadable",
			zap.String("path", in.OutputPath), zap.Error(readErr))
	}

	taskID := in.TaskID
	if taskID == "" && readErr == nil {
		if id, ok := evidence.ExtractTaskID(string(output)); ok {
			taskID = id
		}
	}
	if taskID == "" {
		h.log.Warn("no task identifier for review", zap.String("path", in.OutputPath))
		return allow("no task identifier for review; nothing recorded"), nil
	}

	var info string
	_, err = h.store.Update(ctx, func(g *taskgraph.Graph) error {
		t := g.Task(taskID)
		if t == nil {
			info = fmt.Sprintf("review names unknown task %s; ignored", taskID)
			return nil
		}
		if t.Status == taskgraph.TaskCompleted {
			info = fmt.Sprintf("task %s already completed; review ignored", taskID)
			return nil
		}

		if readErr != nil {
			t.ReviewStatus = taskgraph.ReviewEvidenceCaptureFailed
			info = fmt.Sprintf("task %s review evidence capture failed", taskID)
			return nil
		}

		findings := evidence.ParseFindings(string(output))
		t.CriticalFindings = findings.Critical
		t.AdvisoryFindings = findings.Advisory
		if findings.Blocking() {
			t.ReviewStatus = taskgraph.ReviewBlocked
			g.Gate(t.Wave).Blocked = true
			info = fmt.Sprintf("task %s review blocked: %d critical findings",
				taskID, len(findings.Critical))
		} else {
			t.ReviewStatus = taskgraph.ReviewPassed
			info = fmt.Sprintf("task %s review passed (%d advisory findings)",
				taskID, len(findings.Advisory))
			// A clean re-review may have been the last blocker; keep the
			// persisted gate flag in step with the tasks.
			stillBlocked := false
			for _, wt := range g.WaveTasks(t.Wave) {
				if len(wt.CriticalFindings) > 0 || wt.ReviewStatus == taskgraph.ReviewBlocked {
					stillBlocked = true
					break
				}
			}
			g.Gate(t.Wave).Blocked = stillBlocked
		}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return allow(info), nil
}
