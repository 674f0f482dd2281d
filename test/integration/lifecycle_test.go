// Package integration exercises the full orchestration lifecycle against
// the real file-backed store: graph creation, spawn validation, evidence
// capture, review recording, and wave-gate advancement.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/gate"
	"github.com/fyrsmithlabs/waved/internal/handlers"
	"github.com/fyrsmithlabs/waved/internal/lockdir"
	"github.com/fyrsmithlabs/waved/internal/session"
	"github.com/fyrsmithlabs/waved/internal/store"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
	"github.com/fyrsmithlabs/waved/internal/tracker"
)

type env struct {
	store    *store.FileStore
	sessions *session.Registry
	handlers *handlers.Handlers
	gate     *gate.Controller
	workDir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	workDir := t.TempDir()

	st := store.NewFileStore(
		filepath.Join(workDir, ".orchestration", "task-graph.json"),
		lockdir.New(500, time.Millisecond))
	reg, err := session.NewRegistry(filepath.Join(workDir, "sessions"))
	require.NoError(t, err)

	return &env{
		store:    st,
		sessions: reg,
		handlers: handlers.New(st, reg, zap.NewNop()),
		gate:     gate.NewController(st, tracker.Nop{}, zap.NewNop()),
		workDir:  workDir,
	}
}

func (e *env) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.workDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// seed creates a two-wave graph already in the execute phase, the state
// waved init leaves behind after decompose.
func (e *env) seed(t *testing.T) {
	t.Helper()
	g := &taskgraph.Graph{
		RunID:        "run-integration",
		CreatedAt:    time.Now().UTC(),
		CurrentPhase: taskgraph.PhaseExecute,
		CurrentWave:  1,
		PhaseArtifacts: map[taskgraph.Phase]string{
			taskgraph.PhaseArchitecture: e.writeFile(t, "plan.md", "# Plan\n"),
		},
		Tasks: []taskgraph.Task{
			{ID: "T1", Wave: 1, Status: taskgraph.TaskPending, ReviewStatus: taskgraph.ReviewPending},
			{ID: "T2", Wave: 1, Status: taskgraph.TaskPending, ReviewStatus: taskgraph.ReviewPending},
			{ID: "T3", Wave: 2, Status: taskgraph.TaskPending, ReviewStatus: taskgraph.ReviewPending,
				DependsOn: []string{"T1"}},
		},
		WaveGates: map[string]*taskgraph.WaveGate{taskgraph.WaveKey(1): {}},
	}
	require.NoError(t, e.store.Replace(context.Background(), g))
}

// implement drives one task through spawn, transcript capture, and review.
func (e *env) implement(t *testing.T, taskID string) {
	t.Helper()
	ctx := context.Background()
	sessionID := "sess-" + taskID

	d, err := e.handlers.PreTool(ctx, handlers.PreToolInput{
		SessionID: sessionID,
		ToolName:  "Task",
		ToolInput: map[string]any{
			"subagent_type": "implementer",
			"prompt":        "implement task " + taskID,
		},
	})
	require.NoError(t, err)
	require.True(t, d.Allow, d.Reason)

	// The spawned subagent may edit files; the orchestrator may not.
	d, err = e.handlers.PreTool(ctx, handlers.PreToolInput{SessionID: sessionID, ToolName: "Edit"})
	require.NoError(t, err)
	assert.True(t, d.Allow, "subagent session is exempt from the edit denial")

	transcript := e.writeFile(t, "transcript-"+taskID+".txt", fmt.Sprintf(
		"task_id: %s\nNew tests: written\nok  \tgithub.com/acme/%s\t0.1s\n", taskID, taskID))
	d, err = e.handlers.SubagentCompleted(ctx, handlers.SubagentInput{
		SessionID: sessionID, TranscriptPath: transcript,
	})
	require.NoError(t, err)
	require.True(t, d.Allow)

	review := e.writeFile(t, "review-"+taskID+".txt",
		"Reviewed task "+taskID+".\nADVISORY: minor naming\n")
	d, err = e.handlers.ReviewCompleted(ctx, handlers.ReviewInput{
		SessionID: "sess-review", TaskID: taskID, OutputPath: review,
	})
	require.NoError(t, err)
	require.True(t, d.Allow)
}

func TestFullLifecycle(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	// While wave 1 is open the orchestrator cannot edit files directly.
	d, err := e.handlers.PreTool(ctx, handlers.PreToolInput{SessionID: "sess-main", ToolName: "Write"})
	require.NoError(t, err)
	assert.False(t, d.Allow)

	// The gate refuses to close before any work happened.
	_, err = e.gate.CompleteWave(ctx)
	var cerr *gate.CheckError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, gate.CheckImplComplete, cerr.Check)
	assert.Equal(t, []string{"T1", "T2"}, cerr.TaskIDs)

	e.implement(t, "T1")

	// Half-done wave still fails, naming only the outstanding task.
	_, err = e.gate.CompleteWave(ctx)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"T2"}, cerr.TaskIDs)

	e.implement(t, "T2")

	result, err := e.gate.CompleteWave(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Wave)
	assert.Equal(t, 2, result.NextWave)
	assert.False(t, result.Completed)

	g, err := e.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, g.CurrentWave)
	assert.Equal(t, taskgraph.TaskCompleted, g.Task("T1").Status)
	closed := g.WaveGates[taskgraph.WaveKey(1)]
	require.NotNil(t, closed)
	assert.True(t, closed.ReviewsComplete)

	e.implement(t, "T3")

	result, err = e.gate.CompleteWave(ctx)
	require.NoError(t, err)
	assert.True(t, result.Completed)

	g, err = e.store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, g.Completed)

	// The document is read-only at rest throughout.
	info, err := os.Stat(e.store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), info.Mode().Perm())
}

func TestBlockedReviewHoldsTheWave(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	e.implement(t, "T1")

	// T2's implementation lands but its review raises a critical finding.
	transcript := e.writeFile(t, "transcript-T2.txt",
		"task_id: T2\nNew tests: written\nok  \tpkg\t0.1s\n")
	_, err := e.handlers.SubagentCompleted(ctx, handlers.SubagentInput{
		SessionID: "sess-T2", TranscriptPath: transcript,
	})
	require.NoError(t, err)

	review := e.writeFile(t, "review-T2.txt", "CRITICAL: lock released before commit\n")
	_, err = e.handlers.ReviewCompleted(ctx, handlers.ReviewInput{
		SessionID: "sess-review", TaskID: "T2", OutputPath: review,
	})
	require.NoError(t, err)

	_, err = e.gate.CompleteWave(ctx)
	var cerr *gate.CheckError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, gate.CheckCriticalFindings, cerr.Check)
	assert.Equal(t, []string{"T2"}, cerr.TaskIDs)

	// The denial surfaced to a direct edit names the blocking task.
	d, err := e.handlers.PreTool(ctx, handlers.PreToolInput{SessionID: "sess-main", ToolName: "Edit"})
	require.NoError(t, err)
	require.False(t, d.Allow)
	assert.Contains(t, d.Reason, "T2")

	// A clean re-review unblocks the wave.
	reReview := e.writeFile(t, "review-T2-fixed.txt", "Reviewed task T2 again. Clean.\n")
	_, err = e.handlers.ReviewCompleted(ctx, handlers.ReviewInput{
		SessionID: "sess-review", TaskID: "T2", OutputPath: reReview,
	})
	require.NoError(t, err)

	result, err := e.gate.CompleteWave(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NextWave)
}

func TestSessionDiscoveryAcrossWorkingDirectories(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	// The orchestrator registers the absolute state path; a handler running
	// elsewhere resolves it through the registry alone.
	require.NoError(t, e.sessions.RegisterState("sess-remote", e.store.Path()))
	resolved, err := e.sessions.StatePath("sess-remote")
	require.NoError(t, err)
	assert.Equal(t, e.store.Path(), resolved)

	remote := store.NewFileStore(resolved, lockdir.New(500, time.Millisecond))
	g, err := remote.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-integration", g.RunID)
}
