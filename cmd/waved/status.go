package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/waved/internal/store"
	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

var (
	statusSession string
	statusWatch   bool
)

func init() {
	statusCmd.Flags().StringVar(&statusSession, "session", "", "session id for state discovery")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "re-render on state changes until interrupted")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current phase, wave, and task states",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := newStore(statusSession)
		if err != nil {
			return err
		}
		if err := renderStatus(cmd.Context(), st); err != nil {
			return err
		}
		if !statusWatch {
			return nil
		}
		return watchStatus(cmd.Context(), st)
	},
}

func renderStatus(ctx context.Context, st *store.FileStore) error {
	g, err := st.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Println("no active orchestration")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("run %s  phase=%s  wave=%d/%d", g.RunID, g.CurrentPhase, g.CurrentWave, g.LastWave())
	if g.Completed {
		fmt.Print("  completed")
	}
	fmt.Println()
	if len(g.SkippedPhases) > 0 {
		skipped := make([]string, len(g.SkippedPhases))
		for i, p := range g.SkippedPhases {
			skipped[i] = string(p)
		}
		fmt.Printf("skipped phases: %s\n", strings.Join(skipped, ", "))
	}

	waves := make(map[int][]*taskgraph.Task)
	for i := range g.Tasks {
		t := &g.Tasks[i]
		waves[t.Wave] = append(waves[t.Wave], t)
	}
	nums := make([]int, 0, len(waves))
	for w := range waves {
		nums = append(nums, w)
	}
	sort.Ints(nums)

	for _, w := range nums {
		gate := g.WaveGates[taskgraph.WaveKey(w)]
		fmt.Printf("wave %d%s\n", w, gateSummary(gate))
		for _, t := range waves[w] {
			fmt.Printf("  %-12s %-12s review=%-24s%s\n",
				t.ID, t.Status, t.ReviewStatus, taskFlags(t))
		}
	}
	return nil
}

func gateSummary(gate *taskgraph.WaveGate) string {
	if gate == nil {
		return ""
	}
	var parts []string
	if gate.ImplComplete {
		parts = append(parts, "impl-complete")
	}
	if gate.TestsPassed != nil {
		if *gate.TestsPassed {
			parts = append(parts, "tests-passed")
		} else {
			parts = append(parts, "tests-failed")
		}
	}
	if gate.ReviewsComplete {
		parts = append(parts, "reviews-complete")
	}
	if gate.Blocked {
		parts = append(parts, "BLOCKED")
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, " ") + "]"
}

func taskFlags(t *taskgraph.Task) string {
	var parts []string
	if t.TestsPassed {
		parts = append(parts, "tests-passed")
	}
	if t.NewTestsWritten {
		parts = append(parts, "new-tests")
	}
	if len(t.CriticalFindings) > 0 {
		parts = append(parts, fmt.Sprintf("%d critical", len(t.CriticalFindings)))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// watchStatus re-renders on every commit of the state document. The commit
// protocol is temp-file-plus-rename, so the watch targets the containing
// directory and filters for the document's name.
func watchStatus(ctx context.Context, st *store.FileStore) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(st.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := filepath.Clean(st.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			fmt.Println("---")
			if err := renderStatus(ctx, st); err != nil {
				fmt.Fprintln(os.Stderr, "render: "+err.Error())
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch: "+werr.Error())
		}
	}
}
