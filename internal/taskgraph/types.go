// Package taskgraph defines the persisted task-graph document that drives a
// wave-gated, multi-phase delivery workflow across independently spawned
// agent processes.
package taskgraph

import (
	"fmt"
	"strconv"
	"time"
)

// Phase represents one stage of the fixed delivery pipeline.
type Phase string

const (
	// PhaseInit is the pre-orchestration starting state.
	PhaseInit Phase = "init"

	// PhaseBrainstorm explores the problem space.
	PhaseBrainstorm Phase = "brainstorm"

	// PhaseSpecify writes the specification artifact.
	PhaseSpecify Phase = "specify"

	// PhaseClarify resolves open clarification markers in the spec.
	PhaseClarify Phase = "clarify"

	// PhaseArchitecture produces the plan/architecture artifact.
	PhaseArchitecture Phase = "architecture"

	// PhaseDecompose breaks the plan into waves of tasks.
	PhaseDecompose Phase = "decompose"

	// PhaseExecute runs task waves. It is the only phase that self-loops.
	PhaseExecute Phase = "execute"
)

// AllPhases returns the pipeline phases in execution order.
func AllPhases() []Phase {
	return []Phase{
		PhaseInit, PhaseBrainstorm, PhaseSpecify, PhaseClarify,
		PhaseArchitecture, PhaseDecompose, PhaseExecute,
	}
}

// PhaseIndex returns the position of p in the pipeline, or -1 if p is not a
// known phase.
func PhaseIndex(p Phase) int {
	for i, known := range AllPhases() {
		if known == p {
			return i
		}
	}
	return -1
}

// TaskStatus tracks a task through implementation and review.
type TaskStatus string

const (
	TaskPending     TaskStatus = "pending"
	TaskImplemented TaskStatus = "implemented"
	TaskCompleted   TaskStatus = "completed"
)

// ReviewStatus records the outcome of a task's review.
type ReviewStatus string

const (
	ReviewPending               ReviewStatus = "pending"
	ReviewPassed                ReviewStatus = "passed"
	ReviewBlocked               ReviewStatus = "blocked"
	ReviewEvidenceCaptureFailed ReviewStatus = "evidence_capture_failed"
)

// Reviewed reports whether the status counts as a finished review.
// Blocked reviews are finished; they still fail the wave gate.
func (s ReviewStatus) Reviewed() bool {
	return s == ReviewPassed || s == ReviewBlocked
}

// Verdict is the outcome of a spec-alignment check.
type Verdict string

const (
	VerdictPassed  Verdict = "PASSED"
	VerdictBlocked Verdict = "BLOCKED"
)

// Task is a single unit of work inside a wave.
type Task struct {
	ID           string       `json:"id"`
	Wave         int          `json:"wave"`
	Status       TaskStatus   `json:"status"`
	DependsOn    []string     `json:"depends_on,omitempty"`
	ReviewStatus ReviewStatus `json:"review_status"`

	TestsPassed  bool   `json:"tests_passed"`
	TestEvidence string `json:"test_evidence,omitempty"`

	// NewTestsRequired is tri-state: nil means unspecified, which the wave
	// gate treats the same as true.
	NewTestsRequired *bool `json:"new_tests_required,omitempty"`
	NewTestsWritten  bool  `json:"new_tests_written"`

	CriticalFindings []string `json:"critical_findings,omitempty"`
	AdvisoryFindings []string `json:"advisory_findings,omitempty"`
}

// NewTestsExempt reports whether the task explicitly opted out of the
// new-test requirement.
func (t *Task) NewTestsExempt() bool {
	return t.NewTestsRequired != nil && !*t.NewTestsRequired
}

// WaveGate aggregates per-wave completion evidence.
type WaveGate struct {
	ImplComplete    bool  `json:"impl_complete"`
	TestsPassed     *bool `json:"tests_passed"`
	ReviewsComplete bool  `json:"reviews_complete"`
	Blocked         bool  `json:"blocked"`
}

// SpecCheck records the outcome of a spec-alignment review for one wave.
type SpecCheck struct {
	Wave             int       `json:"wave"`
	RunAt            time.Time `json:"run_at"`
	CriticalCount    int       `json:"critical_count"`
	HighCount        int       `json:"high_count"`
	CriticalFindings []string  `json:"critical_findings,omitempty"`
	HighFindings     []string  `json:"high_findings,omitempty"`
	Verdict          Verdict   `json:"verdict"`
}

// TrackerRef links the orchestration run to an external issue.
type TrackerRef struct {
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
	Issue int    `json:"issue,omitempty"`
}

// Graph is the persisted orchestration document. A run has exactly one.
type Graph struct {
	RunID          string               `json:"run_id"`
	CreatedAt      time.Time            `json:"created_at"`
	CurrentPhase   Phase                `json:"current_phase"`
	CurrentWave    int                  `json:"current_wave"`
	SkippedPhases  []Phase              `json:"skipped_phases,omitempty"`
	PhaseArtifacts map[Phase]string     `json:"phase_artifacts,omitempty"`
	Tasks          []Task               `json:"tasks"`
	WaveGates      map[string]*WaveGate `json:"wave_gates"`
	SpecCheck      *SpecCheck           `json:"spec_check,omitempty"`
	Tracker        TrackerRef           `json:"tracker,omitempty"`
	Completed      bool                 `json:"completed"`
}

// WaveKey is the wave_gates map key for a wave number.
func WaveKey(wave int) string {
	return strconv.Itoa(wave)
}

// Gate returns the gate for the given wave, creating it if absent.
func (g *Graph) Gate(wave int) *WaveGate {
	if g.WaveGates == nil {
		g.WaveGates = make(map[string]*WaveGate)
	}
	key := WaveKey(wave)
	gate, ok := g.WaveGates[key]
	if !ok {
		gate = &WaveGate{}
		g.WaveGates[key] = gate
	}
	return gate
}

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *Task {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return &g.Tasks[i]
		}
	}
	return nil
}

// WaveTasks returns pointers to all tasks in the given wave.
func (g *Graph) WaveTasks(wave int) []*Task {
	var tasks []*Task
	for i := range g.Tasks {
		if g.Tasks[i].Wave == wave {
			tasks = append(tasks, &g.Tasks[i])
		}
	}
	return tasks
}

// LastWave returns the highest wave number across all tasks, or 0 when the
// graph has no tasks.
func (g *Graph) LastWave() int {
	last := 0
	for i := range g.Tasks {
		if g.Tasks[i].Wave > last {
			last = g.Tasks[i].Wave
		}
	}
	return last
}

// PhaseSkipped reports whether the phase was explicitly skipped.
func (g *Graph) PhaseSkipped(p Phase) bool {
	for _, skipped := range g.SkippedPhases {
		if skipped == p {
			return true
		}
	}
	return false
}

// Validate checks structural invariants of the document.
func (g *Graph) Validate() error {
	if PhaseIndex(g.CurrentPhase) == -1 {
		return fmt.Errorf("unknown current phase %q", g.CurrentPhase)
	}
	if g.CurrentWave < 0 {
		return fmt.Errorf("negative current wave %d", g.CurrentWave)
	}
	seen := make(map[string]bool, len(g.Tasks))
	for i := range g.Tasks {
		t := &g.Tasks[i]
		if t.ID == "" {
			return fmt.Errorf("task %d has empty id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
		if t.Wave < 1 {
			return fmt.Errorf("task %s has invalid wave %d", t.ID, t.Wave)
		}
	}
	for i := range g.Tasks {
		for _, dep := range g.Tasks[i].DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %s depends on unknown task %q", g.Tasks[i].ID, dep)
			}
		}
	}
	return nil
}
