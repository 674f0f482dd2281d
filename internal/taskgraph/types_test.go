package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name    string
		graph   Graph
		wantErr string
	}{
		{
			name: "valid graph",
			graph: Graph{
				CurrentPhase: PhaseExecute,
				CurrentWave:  1,
				Tasks: []Task{
					{ID: "T1", Wave: 1},
					{ID: "T2", Wave: 2, DependsOn: []string{"T1"}},
				},
			},
		},
		{
			name:    "unknown phase",
			graph:   Graph{CurrentPhase: "deploy"},
			wantErr: "unknown current phase",
		},
		{
			name: "duplicate task id",
			graph: Graph{
				CurrentPhase: PhaseExecute,
				Tasks:        []Task{{ID: "T1", Wave: 1}, {ID: "T1", Wave: 2}},
			},
			wantErr: "duplicate task id",
		},
		{
			name: "empty task id",
			graph: Graph{
				CurrentPhase: PhaseExecute,
				Tasks:        []Task{{ID: "", Wave: 1}},
			},
			wantErr: "empty id",
		},
		{
			name: "wave below one",
			graph: Graph{
				CurrentPhase: PhaseExecute,
				Tasks:        []Task{{ID: "T1", Wave: 0}},
			},
			wantErr: "invalid wave",
		},
		{
			name: "unknown dependency",
			graph: Graph{
				CurrentPhase: PhaseExecute,
				Tasks:        []Task{{ID: "T1", Wave: 1, DependsOn: []string{"T9"}}},
			},
			wantErr: "unknown task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGateCreatesOnDemand(t *testing.T) {
	g := &Graph{}
	gate := g.Gate(2)
	require.NotNil(t, gate)
	assert.Same(t, gate, g.WaveGates["2"])
	assert.Same(t, gate, g.Gate(2))
}

func TestWaveTasksAndLastWave(t *testing.T) {
	g := &Graph{Tasks: []Task{
		{ID: "T1", Wave: 1},
		{ID: "T2", Wave: 2},
		{ID: "T3", Wave: 2},
	}}

	assert.Equal(t, 2, g.LastWave())
	assert.Len(t, g.WaveTasks(2), 2)
	assert.Empty(t, g.WaveTasks(3))

	// WaveTasks returns pointers into the graph, not copies.
	g.WaveTasks(1)[0].Status = TaskImplemented
	assert.Equal(t, TaskImplemented, g.Tasks[0].Status)
}

func TestTaskLookup(t *testing.T) {
	g := &Graph{Tasks: []Task{{ID: "T1", Wave: 1}}}
	require.NotNil(t, g.Task("T1"))
	assert.Nil(t, g.Task("T2"))
}

func TestNewTestsExempt(t *testing.T) {
	assert.False(t, (&Task{}).NewTestsExempt(), "unspecified means required")
	assert.False(t, (&Task{NewTestsRequired: boolPtr(true)}).NewTestsExempt())
	assert.True(t, (&Task{NewTestsRequired: boolPtr(false)}).NewTestsExempt())
}

func TestReviewStatusReviewed(t *testing.T) {
	assert.True(t, ReviewPassed.Reviewed())
	assert.True(t, ReviewBlocked.Reviewed())
	assert.False(t, ReviewPending.Reviewed())
	assert.False(t, ReviewEvidenceCaptureFailed.Reviewed())
}
