// Package session maps agent-runtime session ids to orchestration state.
//
// A spawned subagent may run with a different working directory than the
// orchestrator, so a project-relative state path is not enough for it to
// find the authoritative document. The registry keeps ephemeral files under
// a shared temporary directory:
//
//	{base}/
//	├── {session}.json      ← absolute path of the state document
//	└── {session}.subagent  ← marker: this session is a recognized subagent
//
// The files are discovery only, never a data store; the state document
// remains the single source of truth.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Errors for registry operations.
var (
	ErrSessionNotFound  = errors.New("session not registered")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// idPattern keeps session ids filesystem-safe. Runtime session ids are
// UUID-like, so alphanumerics plus hyphens/underscores/dots cover them.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Entry is the persisted per-session record.
type Entry struct {
	StatePath    string    `json:"state_path"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry resolves session ids to state-document paths and subagent
// markers.
type Registry struct {
	base string
}

// NewRegistry creates a registry rooted at base. An empty base uses
// {tmp}/waved-sessions.
func NewRegistry(base string) (*Registry, error) {
	if base == "" {
		base = filepath.Join(os.TempDir(), "waved-sessions")
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}
	return &Registry{base: base}, nil
}

// Base returns the registry directory.
func (r *Registry) Base() string {
	return r.base
}

// ValidateID checks that a session id is safe to use as a file name.
func ValidateID(id string) error {
	if id == "" || len(id) > 128 {
		return ErrInvalidSessionID
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidSessionID
	}
	if filepath.Clean(id) != id {
		return ErrInvalidSessionID
	}
	return nil
}

// RegisterState records the absolute state-document path for a session.
func (r *Registry) RegisterState(sessionID, statePath string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	abs, err := filepath.Abs(statePath)
	if err != nil {
		return fmt.Errorf("resolve state path: %w", err)
	}
	entry := Entry{StatePath: abs, RegisteredAt: time.Now().UTC()}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session entry: %w", err)
	}

	// Write atomically so a concurrent reader never sees a partial entry.
	target := r.entryPath(sessionID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit session entry: %w", err)
	}
	return nil
}

// StatePath returns the registered absolute state path for a session.
func (r *Registry) StatePath(sessionID string) (string, error) {
	if err := ValidateID(sessionID); err != nil {
		return "", err
	}
	data, err := os.ReadFile(r.entryPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("read session entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", fmt.Errorf("decode session entry: %w", err)
	}
	if entry.StatePath == "" {
		return "", ErrSessionNotFound
	}
	return entry.StatePath, nil
}

// MarkSubagent flags a session as a recognized subagent of the
// orchestration. The pre-action check uses the marker to exempt subagents
// from the direct-edit denial.
func (r *Registry) MarkSubagent(sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	content := fmt.Sprintf("pid=%d marked=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(r.markerPath(sessionID), []byte(content), 0o600); err != nil {
		return fmt.Errorf("write subagent marker: %w", err)
	}
	return nil
}

// ClearSubagent removes the marker. Clearing an absent marker is not an
// error.
func (r *Registry) ClearSubagent(sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(r.markerPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove subagent marker: %w", err)
	}
	return nil
}

// IsSubagent reports whether the session carries a subagent marker.
func (r *Registry) IsSubagent(sessionID string) bool {
	if ValidateID(sessionID) != nil {
		return false
	}
	_, err := os.Stat(r.markerPath(sessionID))
	return err == nil
}

// Remove deletes all registry files for a session.
func (r *Registry) Remove(sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(r.entryPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session entry: %w", err)
	}
	return r.ClearSubagent(sessionID)
}

func (r *Registry) entryPath(sessionID string) string {
	return filepath.Join(r.base, sessionID+".json")
}

func (r *Registry) markerPath(sessionID string) string {
	return filepath.Join(r.base, sessionID+".subagent")
}
