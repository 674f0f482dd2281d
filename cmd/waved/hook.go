package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/waved/internal/handlers"
)

// exitBlock is the exit code the agent runtime interprets as "block the
// action"; the reason travels on stderr, informational text on stdout.
const exitBlock = 2

// hookPayload is the runtime's hook envelope read from stdin.
type hookPayload struct {
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path"`
	CWD            string         `json:"cwd"`
	HookEventName  string         `json:"hook_event_name"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	OutputPath     string         `json:"output_path"`
	TaskID         string         `json:"task_id"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Event-handler entrypoints invoked by the agent runtime",
	Long: `The hook subcommands read the runtime's JSON payload from stdin and
report the decision through the exit code: 0 allows the action (stdout may
carry informational text), 2 blocks it with the reason on stderr.`,
}

func init() {
	hookCmd.AddCommand(hookPreToolCmd)
	hookCmd.AddCommand(hookSubagentStartCmd)
	hookCmd.AddCommand(hookSubagentCmd)
	hookCmd.AddCommand(hookReviewCmd)
}

var hookPreToolCmd = &cobra.Command{
	Use:   "pretool",
	Short: "Pre-action check: validate spawns, deny direct edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin())
		if err != nil {
			return err
		}
		h, _, _, err := newHandlers(payload.SessionID)
		if err != nil {
			return err
		}
		decision, err := h.PreTool(cmd.Context(), handlers.PreToolInput{
			SessionID: payload.SessionID,
			ToolName:  payload.ToolName,
			ToolInput: payload.ToolInput,
		})
		if err != nil {
			return err
		}
		report(decision)
		return nil
	},
}

var hookSubagentStartCmd = &cobra.Command{
	Use:   "subagent-start",
	Short: "Mark the session as a recognized subagent",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin())
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		return reg.MarkSubagent(payload.SessionID)
	},
}

var hookSubagentCmd = &cobra.Command{
	Use:   "subagent",
	Short: "Subagent completion: extract task id and test evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin())
		if err != nil {
			return err
		}
		h, _, _, err := newHandlers(payload.SessionID)
		if err != nil {
			return err
		}
		decision, err := h.SubagentCompleted(cmd.Context(), handlers.SubagentInput{
			SessionID:      payload.SessionID,
			TranscriptPath: payload.TranscriptPath,
		})
		if err != nil {
			return err
		}
		report(decision)
		return nil
	},
}

var hookReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review completion: record CRITICAL/ADVISORY findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin())
		if err != nil {
			return err
		}
		h, _, _, err := newHandlers(payload.SessionID)
		if err != nil {
			return err
		}
		outputPath := payload.OutputPath
		if outputPath == "" {
			outputPath = payload.TranscriptPath
		}
		decision, err := h.ReviewCompleted(cmd.Context(), handlers.ReviewInput{
			SessionID:  payload.SessionID,
			TaskID:     payload.TaskID,
			OutputPath: outputPath,
		})
		if err != nil {
			return err
		}
		report(decision)
		return nil
	},
}

func readPayload(r io.Reader) (*hookPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read hook payload: %w", err)
	}
	var payload hookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode hook payload: %w", err)
	}
	return &payload, nil
}

// report communicates the decision: block reasons on stderr with exit 2,
// informational text on stdout.
func report(d handlers.Decision) {
	if !d.Allow {
		fmt.Fprintln(os.Stderr, d.Reason)
		if logger != nil {
			_ = logger.Sync()
		}
		os.Exit(exitBlock)
	}
	if d.Info != "" {
		fmt.Println(d.Info)
	}
}
