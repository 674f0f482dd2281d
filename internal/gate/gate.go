// Package gate decides wave advancement.
//
// The controller evaluates five ordered checks against the current wave's
// tasks. Every check runs strictly before any mutation: a failing check
// aborts the whole operation with a structured error naming the check and
// the responsible task ids, leaving the persisted state untouched. Only an
// all-pass outcome commits: wave tasks are finalized, the gate is closed,
// and the next wave opens (or the run completes).
package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/store"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// CheckName identifies one of the ordered gate checks.
type CheckName string

const (
	CheckImplComplete     CheckName = "implementation-complete"
	CheckTestEvidence     CheckName = "test-evidence"
	CheckNewTests         CheckName = "new-test-requirement"
	CheckReviews          CheckName = "review-completeness"
	CheckSpecAlignment    CheckName = "spec-alignment"
	CheckCriticalFindings CheckName = "critical-findings"
)

// CheckError reports the first failing gate check.
type CheckError struct {
	Check   CheckName
	Wave    int
	TaskIDs []string
	Detail  string
}

func (e *CheckError) Error() string {
	msg := fmt.Sprintf("wave %d gate check %s failed", e.Wave, e.Check)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(e.TaskIDs) > 0 {
		msg += " (tasks: " + strings.Join(e.TaskIDs, ", ") + ")"
	}
	return msg
}

// Notifier receives best-effort completion notifications. Implementations
// must tolerate being called for the same task more than once.
type Notifier interface {
	TaskCompleted(ctx context.Context, ref taskgraph.TrackerRef, taskID string) error
	WaveCompleted(ctx context.Context, ref taskgraph.TrackerRef, wave int) error
}

// Result summarizes a successful gate completion.
type Result struct {
	Wave      int
	TaskIDs   []string
	Warnings  []string
	NextWave  int
	Completed bool
}

// Controller runs wave-gate completion against a Store.
type Controller struct {
	store    store.Store
	notifier Notifier
	log      *zap.Logger
}

// NewController creates a Controller. notifier may be nil to disable
// tracker sync.
func NewController(st store.Store, notifier Notifier, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{store: st, notifier: notifier, log: log}
}

// CompleteWave evaluates the gate for the graph's current wave and, on an
// all-pass, advances it. The checks run inside the store transaction, so
// failure aborts without writing.
func (c *Controller) CompleteWave(ctx context.Context) (*Result, error) {
	result := &Result{}
	g, err := c.store.Update(ctx, func(g *taskgraph.Graph) error {
		return c.evaluateAndAdvance(g, result)
	})
	if err != nil {
		return nil, err
	}
	c.notify(ctx, g.Tracker, result)
	return result, nil
}

// evaluateAndAdvance runs the ordered checks and mutates the graph only if
// every check passes.
func (c *Controller) evaluateAndAdvance(g *taskgraph.Graph, result *Result) error {
	wave := g.CurrentWave
	tasks := g.WaveTasks(wave)
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks in wave %d", wave)
	}
	result.Wave = wave

	// Precondition: the gate runs once every wave task is implemented.
	if ids := failingIDs(tasks, func(t *taskgraph.Task) bool {
		return t.Status == taskgraph.TaskPending
	}); len(ids) > 0 {
		return &CheckError{Check: CheckImplComplete, Wave: wave, TaskIDs: ids,
			Detail: "tasks not yet implemented"}
	}

	// Check 1: test evidence.
	if ids := failingIDs(tasks, func(t *taskgraph.Task) bool {
		return !t.TestsPassed
	}); len(ids) > 0 {
		return &CheckError{Check: CheckTestEvidence, Wave: wave, TaskIDs: ids,
			Detail: "tests not passing"}
	}

	// Check 2: new-test requirement. Only an explicit false exempts.
	if ids := failingIDs(tasks, func(t *taskgraph.Task) bool {
		return !t.NewTestsExempt() && !t.NewTestsWritten
	}); len(ids) > 0 {
		return &CheckError{Check: CheckNewTests, Wave: wave, TaskIDs: ids,
			Detail: "new tests required but not written"}
	}

	// Check 3: review completeness. Blocked counts as reviewed here; it
	// fails the gate at check 5.
	if ids := failingIDs(tasks, func(t *taskgraph.Task) bool {
		return !t.ReviewStatus.Reviewed()
	}); len(ids) > 0 {
		return &CheckError{Check: CheckReviews, Wave: wave, TaskIDs: ids,
			Detail: "reviews not complete"}
	}

	// Check 4: spec alignment. A check recorded for a different wave is a
	// warning, not a failure.
	if sc := g.SpecCheck; sc != nil {
		if sc.Wave != wave {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("spec check was run for wave %d, not current wave %d", sc.Wave, wave))
		} else if sc.CriticalCount > 0 {
			return &CheckError{Check: CheckSpecAlignment, Wave: wave,
				Detail: fmt.Sprintf("spec check reported %d critical findings", sc.CriticalCount)}
		}
	}

	// Check 5: zero critical findings across the wave. A blocked review
	// with no recorded findings still blocks.
	if ids := failingIDs(tasks, func(t *taskgraph.Task) bool {
		return len(t.CriticalFindings) > 0 || t.ReviewStatus == taskgraph.ReviewBlocked
	}); len(ids) > 0 {
		return &CheckError{Check: CheckCriticalFindings, Wave: wave, TaskIDs: ids,
			Detail: "critical findings outstanding"}
	}

	// All checks passed: finalize the wave.
	for _, t := range tasks {
		t.Status = taskgraph.TaskCompleted
		t.ReviewStatus = taskgraph.ReviewPassed
		result.TaskIDs = append(result.TaskIDs, t.ID)
	}
	sort.Strings(result.TaskIDs)

	passed := true
	closed := g.Gate(wave)
	closed.ImplComplete = true
	closed.TestsPassed = &passed
	closed.ReviewsComplete = true
	closed.Blocked = false

	if wave >= g.LastWave() {
		g.Completed = true
		result.Completed = true
		return nil
	}
	g.CurrentWave = wave + 1
	g.WaveGates[taskgraph.WaveKey(g.CurrentWave)] = &taskgraph.WaveGate{}
	result.NextWave = g.CurrentWave
	return nil
}

// notify pushes completion to the issue tracker. Failures are logged and
// never propagated; tracker sync must not block advancement.
func (c *Controller) notify(ctx context.Context, ref taskgraph.TrackerRef, result *Result) {
	if c.notifier == nil {
		return
	}
	for _, id := range result.TaskIDs {
		if err := c.notifier.TaskCompleted(ctx, ref, id); err != nil {
			c.log.Warn("tracker sync failed for task",
				zap.String("task", id), zap.Error(err))
		}
	}
	if err := c.notifier.WaveCompleted(ctx, ref, result.Wave); err != nil {
		c.log.Warn("tracker sync failed for wave",
			zap.Int("wave", result.Wave), zap.Error(err))
	}
}

func failingIDs(tasks []*taskgraph.Task, failed func(*taskgraph.Task) bool) []string {
	var ids []string
	for _, t := range tasks {
		if failed(t) {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
