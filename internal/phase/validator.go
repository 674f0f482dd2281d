// Package phase validates requested phase transitions against the task
// graph: the fixed pipeline DAG, and each phase's artifact prerequisites.
//
// Validation is synchronous and fail-closed: a spawn that cannot be
// classified, or whose prerequisites are missing, is rejected with a
// message naming the specific missing piece. Nothing is queued or retried.
package phase

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

const (
	// ClarificationMarker is the literal scanned for in the spec artifact.
	ClarificationMarker = "[NEEDS CLARIFICATION"

	// ClarificationThreshold is the maximum number of unresolved markers
	// tolerated when entering architecture without an explicit clarify
	// skip.
	ClarificationThreshold = 3
)

// ErrUnknownAgent rejects spawns whose intent could not be classified.
var ErrUnknownAgent = errors.New("unrecognized agent intent")

// MissingArtifactError names the phase whose artifact prerequisite failed.
type MissingArtifactError struct {
	Phase  taskgraph.Phase
	Reason string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing prerequisite for phase %s: %s", e.Phase, e.Reason)
}

// Validator checks phase transitions and artifact prerequisites.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Check validates that the graph may advance to the intent's phase. Order:
// classification (fail closed), DAG transition, artifact prerequisites.
func (v *Validator) Check(g *taskgraph.Graph, intent Intent) error {
	if !intent.Known {
		return fmt.Errorf("%w: agent type %q matched no known phase", ErrUnknownAgent, intent.AgentType)
	}
	if err := g.CanTransition(intent.Phase); err != nil {
		return err
	}
	return v.checkArtifacts(g, intent.Phase)
}

func (v *Validator) checkArtifacts(g *taskgraph.Graph, target taskgraph.Phase) error {
	switch target {
	case taskgraph.PhaseSpecify:
		return v.checkBrainstormDone(g)
	case taskgraph.PhaseClarify:
		_, err := v.specArtifact(g)
		return err
	case taskgraph.PhaseArchitecture:
		return v.checkClarifications(g)
	case taskgraph.PhaseDecompose, taskgraph.PhaseExecute:
		return v.checkPlanArtifact(g)
	default:
		return nil
	}
}

// checkBrainstormDone requires brainstorm to have run or to have been
// explicitly skipped.
func (v *Validator) checkBrainstormDone(g *taskgraph.Graph) error {
	if g.PhaseSkipped(taskgraph.PhaseBrainstorm) {
		return nil
	}
	if taskgraph.PhaseIndex(g.CurrentPhase) >= taskgraph.PhaseIndex(taskgraph.PhaseBrainstorm) {
		return nil
	}
	return &MissingArtifactError{
		Phase:  taskgraph.PhaseBrainstorm,
		Reason: "brainstorm was neither completed nor explicitly skipped",
	}
}

// specArtifact returns the recorded spec artifact path, requiring the file
// to exist.
func (v *Validator) specArtifact(g *taskgraph.Graph) (string, error) {
	path, ok := g.PhaseArtifacts[taskgraph.PhaseSpecify]
	if !ok || path == "" {
		return "", &MissingArtifactError{
			Phase:  taskgraph.PhaseSpecify,
			Reason: "no spec artifact recorded",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return "", &MissingArtifactError{
			Phase:  taskgraph.PhaseSpecify,
			Reason: fmt.Sprintf("recorded spec artifact %s does not exist", path),
		}
	}
	return path, nil
}

// checkClarifications enforces the unresolved-marker threshold on entering
// architecture, unless clarify was explicitly skipped.
func (v *Validator) checkClarifications(g *taskgraph.Graph) error {
	path, err := v.specArtifact(g)
	if err != nil {
		return err
	}
	if g.PhaseSkipped(taskgraph.PhaseClarify) {
		return nil
	}
	count, err := CountMarkers(path)
	if err != nil {
		return fmt.Errorf("scan spec artifact: %w", err)
	}
	if count > ClarificationThreshold {
		return &MissingArtifactError{
			Phase: taskgraph.PhaseClarify,
			Reason: fmt.Sprintf("%d unresolved clarification markers in %s (max %d)",
				count, path, ClarificationThreshold),
		}
	}
	return nil
}

// checkPlanArtifact requires the recorded plan/architecture artifact file.
func (v *Validator) checkPlanArtifact(g *taskgraph.Graph) error {
	path, ok := g.PhaseArtifacts[taskgraph.PhaseArchitecture]
	if !ok || path == "" {
		return &MissingArtifactError{
			Phase:  taskgraph.PhaseArchitecture,
			Reason: "no plan artifact recorded",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return &MissingArtifactError{
			Phase:  taskgraph.PhaseArchitecture,
			Reason: fmt.Sprintf("recorded plan artifact %s does not exist", path),
		}
	}
	return nil
}

// CountMarkers counts unresolved clarification markers in the artifact at
// path.
func CountMarkers(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strings.Count(string(data), ClarificationMarker), nil
}
