// Package main implements the waved CLI. Its subcommands are the event
// handlers an agent runtime invokes at lifecycle hook points, plus manual
// operations (init, gate, status, reset).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/waved/internal/config"
	"github.com/fyrsmithlabs/waved/internal/handlers"
	"github.com/fyrsmithlabs/waved/internal/lockdir"
	"github.com/fyrsmithlabs/waved/internal/logging"
	"github.com/fyrsmithlabs/waved/internal/session"
	"github.com/fyrsmithlabs/waved/internal/store"
)

var (
	configPath string
	statePath  string
	version    = "dev"

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "waved",
	Short: "Wave-gated task-graph orchestration engine",
	Long: `waved drives a multi-phase delivery workflow (design -> implementation ->
review) across independently spawned agent processes. Its hook subcommands
are invoked by the agent runtime at lifecycle boundaries; the remaining
subcommands are manual operations against the persisted task graph.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if statePath != "" {
			cfg.State.Path = statePath
		}
		logger, err = logging.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logging.Sync(logger)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/waved/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "state document path (overrides config)")
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

// newRegistry opens the session registry from config.
func newRegistry() (*session.Registry, error) {
	return session.NewRegistry(cfg.Session.Dir)
}

// newStore resolves the state document for a session and wraps it in a
// FileStore. The session registry wins over the config path because a
// subagent may run in a different working directory than the orchestrator.
func newStore(sessionID string) (*store.FileStore, *session.Registry, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, nil, err
	}
	path := cfg.State.Path
	if sessionID != "" {
		if registered, err := reg.StatePath(sessionID); err == nil {
			path = registered
		}
	}
	locks := lockdir.New(cfg.Lock.Attempts, cfg.Lock.Delay)
	return store.NewFileStore(path, locks), reg, nil
}

// newHandlers builds the event-handler set for a session.
func newHandlers(sessionID string) (*handlers.Handlers, *store.FileStore, *session.Registry, error) {
	st, reg, err := newStore(sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	return handlers.New(st, reg, logger), st, reg, nil
}
