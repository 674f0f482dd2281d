package taskgraph

import "fmt"

// TransitionError reports a phase transition that the pipeline DAG forbids.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}

// CanTransition checks whether the graph may move from its current phase to
// target. The pipeline is a fixed chain; a jump over intermediate phases is
// allowed only when every skipped-over phase was explicitly recorded in
// skipped_phases. Only execute self-loops.
func (g *Graph) CanTransition(target Phase) error {
	from := g.CurrentPhase
	fromIdx := PhaseIndex(from)
	toIdx := PhaseIndex(target)

	if fromIdx == -1 || toIdx == -1 {
		return &TransitionError{From: from, To: target}
	}

	if from == target {
		if target == PhaseExecute {
			return nil
		}
		return &TransitionError{From: from, To: target}
	}

	if toIdx <= fromIdx {
		return &TransitionError{From: from, To: target}
	}

	// Every phase strictly between from and target must be an explicit skip.
	for _, mid := range AllPhases()[fromIdx+1 : toIdx] {
		if !g.PhaseSkipped(mid) {
			return &TransitionError{From: from, To: target}
		}
	}
	return nil
}

// AdvancePhase records a validated transition to target.
func (g *Graph) AdvancePhase(target Phase) error {
	if err := g.CanTransition(target); err != nil {
		return err
	}
	g.CurrentPhase = target
	return nil
}

// SkipPhase records an explicit skip of p. Skipping is idempotent.
func (g *Graph) SkipPhase(p Phase) error {
	if PhaseIndex(p) == -1 {
		return fmt.Errorf("unknown phase %q", p)
	}
	if p == PhaseExecute || p == PhaseDecompose {
		return fmt.Errorf("phase %s cannot be skipped", p)
	}
	if !g.PhaseSkipped(p) {
		g.SkippedPhases = append(g.SkippedPhases, p)
	}
	return nil
}
