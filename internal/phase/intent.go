package phase

import (
	"strings"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// Intent is the classified purpose of an agent about to be spawned. It is
// decided once at the boundary so everything downstream branches on a fixed
// enumeration, never on raw agent-type strings.
type Intent struct {
	// Known is false when the agent could not be classified. Unknown
	// intents are rejected outright (fail closed).
	Known bool

	// Phase is the pipeline phase the agent is entering. Valid only when
	// Known is true.
	Phase taskgraph.Phase

	// AgentType is the raw agent type, kept for diagnostics.
	AgentType string
}

// agentPhases maps recognized agent types to their pipeline phase.
var agentPhases = map[string]taskgraph.Phase{
	"brainstormer": taskgraph.PhaseBrainstorm,
	"spec-writer":  taskgraph.PhaseSpecify,
	"clarifier":    taskgraph.PhaseClarify,
	"architect":    taskgraph.PhaseArchitecture,
	"designer":     taskgraph.PhaseArchitecture,
	"decomposer":   taskgraph.PhaseDecompose,
	"implementer":  taskgraph.PhaseExecute,
	"executor":     taskgraph.PhaseExecute,
	// Reviews run inside the execute phase; execute self-loops.
	"reviewer": taskgraph.PhaseExecute,
}

// promptKeywords infers a phase from the prompt when the agent type is
// generic. Order matters: the first matching keyword wins.
var promptKeywords = []struct {
	keyword string
	phase   taskgraph.Phase
}{
	{"brainstorm", taskgraph.PhaseBrainstorm},
	{"clarif", taskgraph.PhaseClarify},
	{"specif", taskgraph.PhaseSpecify},
	{"architect", taskgraph.PhaseArchitecture},
	{"decompos", taskgraph.PhaseDecompose},
	{"implement", taskgraph.PhaseExecute},
	{"execute", taskgraph.PhaseExecute},
	{"review", taskgraph.PhaseExecute},
}

// genericTypes are agent types that carry no phase of their own; the prompt
// decides.
var genericTypes = map[string]bool{
	"":                true,
	"general-purpose": true,
	"generic":         true,
}

// Classify resolves an agent spawn to an Intent. An agent type outside the
// recognized set, with a prompt matching no known keyword, yields an
// unknown intent.
func Classify(agentType, prompt string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(agentType))

	if phase, ok := agentPhases[normalized]; ok {
		return Intent{Known: true, Phase: phase, AgentType: agentType}
	}

	if genericTypes[normalized] {
		lower := strings.ToLower(prompt)
		for _, kw := range promptKeywords {
			if strings.Contains(lower, kw.keyword) {
				return Intent{Known: true, Phase: kw.phase, AgentType: agentType}
			}
		}
	}

	return Intent{Known: false, AgentType: agentType}
}
