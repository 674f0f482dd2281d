package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		agentType string
		prompt    string
		known     bool
		phase     taskgraph.Phase
	}{
		{name: "explicit implementer", agentType: "implementer", known: true, phase: taskgraph.PhaseExecute},
		{name: "explicit reviewer maps to execute", agentType: "reviewer", known: true, phase: taskgraph.PhaseExecute},
		{name: "case and whitespace normalized", agentType: "  Architect ", known: true, phase: taskgraph.PhaseArchitecture},
		{
			name:      "generic type falls back to prompt",
			agentType: "general-purpose",
			prompt:    "Please implement task T3 per the plan",
			known:     true,
			phase:     taskgraph.PhaseExecute,
		},
		{
			name:   "empty type falls back to prompt",
			prompt: "Brainstorm approaches for the cache layer",
			known:  true,
			phase:  taskgraph.PhaseBrainstorm,
		},
		{
			name:   "clarify beats specify in keyword order",
			prompt: "clarify the specification before proceeding",
			known:  true,
			phase:  taskgraph.PhaseClarify,
		},
		{
			name:      "unknown type with matching prompt stays unknown",
			agentType: "database-admin",
			prompt:    "implement the schema",
			known:     false,
		},
		{
			name:      "generic type with no keyword",
			agentType: "generic",
			prompt:    "summarize the meeting notes",
			known:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := Classify(tt.agentType, tt.prompt)
			assert.Equal(t, tt.known, intent.Known)
			if tt.known {
				assert.Equal(t, tt.phase, intent.Phase)
			}
			assert.Equal(t, tt.agentType, intent.AgentType)
		})
	}
}
