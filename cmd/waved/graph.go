package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/waved/internal/gate"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
	"github.com/fyrsmithlabs/waved/internal/tracker"
)

var (
	initPlanPath string
	initSession  string
	gateSession  string
	resetSession string
)

func init() {
	initCmd.Flags().StringVar(&initPlanPath, "plan", "", "decompose plan JSON file (required)")
	initCmd.Flags().StringVar(&initSession, "session", "", "session id to register for cross-directory discovery")
	_ = initCmd.MarkFlagRequired("plan")
	gateCmd.Flags().StringVar(&gateSession, "session", "", "session id for state discovery")
	resetCmd.Flags().StringVar(&resetSession, "session", "", "session id whose registry entries to remove")
}

// planFile is the decompose output waved init consumes.
type planFile struct {
	Tasks          []planTask           `json:"tasks"`
	PhaseArtifacts map[string]string    `json:"phase_artifacts"`
	SkippedPhases  []string             `json:"skipped_phases"`
	Tracker        taskgraph.TrackerRef `json:"tracker"`
}

type planTask struct {
	ID               string   `json:"id"`
	Wave             int      `json:"wave"`
	DependsOn        []string `json:"depends_on"`
	NewTestsRequired *bool    `json:"new_tests_required"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the task graph from a decompose plan",
	Long: `Create the persisted task graph from the decompose phase's plan output.
This is the single whole-document write; every later mutation flows through
the transactional update protocol.

Examples:
  waved init --plan .orchestration/plan.json
  waved init --plan plan.json --session $SESSION_ID`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(initPlanPath)
		if err != nil {
			return fmt.Errorf("read plan: %w", err)
		}
		var plan planFile
		if err := json.Unmarshal(data, &plan); err != nil {
			return fmt.Errorf("decode plan %s: %w", initPlanPath, err)
		}
		if len(plan.Tasks) == 0 {
			return fmt.Errorf("plan has no tasks")
		}

		g := &taskgraph.Graph{
			RunID:        uuid.New().String(),
			CreatedAt:    time.Now().UTC(),
			CurrentPhase: taskgraph.PhaseDecompose,
			CurrentWave:  1,
			WaveGates: map[string]*taskgraph.WaveGate{
				taskgraph.WaveKey(1): {},
			},
			Tracker: plan.Tracker,
		}
		for _, p := range plan.SkippedPhases {
			if err := g.SkipPhase(taskgraph.Phase(p)); err != nil {
				return err
			}
		}
		if len(plan.PhaseArtifacts) > 0 {
			g.PhaseArtifacts = make(map[taskgraph.Phase]string, len(plan.PhaseArtifacts))
			for p, path := range plan.PhaseArtifacts {
				if taskgraph.PhaseIndex(taskgraph.Phase(p)) == -1 {
					return fmt.Errorf("plan records artifact for unknown phase %q", p)
				}
				g.PhaseArtifacts[taskgraph.Phase(p)] = path
			}
		}
		for _, p := range plan.Tasks {
			g.Tasks = append(g.Tasks, taskgraph.Task{
				ID:               p.ID,
				Wave:             p.Wave,
				Status:           taskgraph.TaskPending,
				DependsOn:        p.DependsOn,
				ReviewStatus:     taskgraph.ReviewPending,
				NewTestsRequired: p.NewTestsRequired,
			})
		}

		st, reg, err := newStore("")
		if err != nil {
			return err
		}
		if err := st.Replace(cmd.Context(), g); err != nil {
			return err
		}
		if initSession != "" {
			if err := reg.RegisterState(initSession, st.Path()); err != nil {
				return err
			}
		}
		fmt.Printf("task graph created: run %s, %d tasks, %d waves (%s)\n",
			g.RunID, len(g.Tasks), g.LastWave(), st.Path())
		return nil
	},
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run wave-gate completion checks and advance the wave",
	Long: `Evaluate the five gate checks against the current wave. On an all-pass
the wave's tasks are finalized and the next wave opens; on any failure the
operation aborts naming the failing check and task ids, and state is left
unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := newStore(gateSession)
		if err != nil {
			return err
		}
		var notifier gate.Notifier = tracker.Nop{}
		if cfg.Tracker.Enabled {
			notifier = tracker.NewGitHub(cmd.Context(), os.Getenv(cfg.Tracker.TokenEnv), logger)
		}
		controller := gate.NewController(st, notifier, logger)
		result, err := controller.CompleteWave(cmd.Context())
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(os.Stderr, "warning: "+w)
		}
		if result.Completed {
			fmt.Printf("wave %d complete; orchestration finished\n", result.Wave)
		} else {
			fmt.Printf("wave %d complete; advancing to wave %d\n", result.Wave, result.NextWave)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the state document (manual escape hatch)",
	Long: `Delete the persisted task graph and its lock directory. This is the
documented recovery path for a stuck orchestration, including a stale lock
left behind by a killed holder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, reg, err := newStore(resetSession)
		if err != nil {
			return err
		}
		if err := st.Delete(cmd.Context()); err != nil {
			return err
		}
		if resetSession != "" {
			if err := reg.Remove(resetSession); err != nil {
				return err
			}
		}
		fmt.Printf("task graph removed (%s)\n", st.Path())
		return nil
	},
}
