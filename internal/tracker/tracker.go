// Package tracker mirrors wave progress to an external issue tracker.
//
// Sync is strictly best-effort: the gate controller logs failures and
// advances regardless. The GitHub implementation toggles checkbox-style
// markers matching a task id in the linked issue's body and comments on
// wave completion.
package tracker

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/waved/internal/taskgraph"
)

// issuesService is the slice of the GitHub Issues API the tracker uses.
// Narrowed for testability.
type issuesService interface {
	Get(ctx context.Context, owner, repo string, number int) (*github.Issue, *github.Response, error)
	Edit(ctx context.Context, owner, repo string, number int, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)
}

// GitHub syncs task completion to a GitHub issue.
type GitHub struct {
	issues issuesService
	log    *zap.Logger
}

// NewGitHub creates a tracker authenticated with the given token.
func NewGitHub(ctx context.Context, token string, log *zap.Logger) *GitHub {
	if log == nil {
		log = zap.NewNop()
	}
	var client *github.Client
	if token == "" {
		client = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	}
	return &GitHub{issues: client.Issues, log: log}
}

// TaskCompleted checks off the checkbox line mentioning taskID in the
// linked issue's body. A missing linkage or an absent checkbox is a no-op.
func (g *GitHub) TaskCompleted(ctx context.Context, ref taskgraph.TrackerRef, taskID string) error {
	if ref.Owner == "" || ref.Repo == "" || ref.Issue == 0 {
		return nil
	}
	issue, _, err := g.issues.Get(ctx, ref.Owner, ref.Repo, ref.Issue)
	if err != nil {
		return fmt.Errorf("fetch issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Issue, err)
	}
	body := issue.GetBody()
	updated := checkOff(body, taskID)
	if updated == body {
		g.log.Debug("no unchecked checkbox for task in issue body",
			zap.String("task", taskID), zap.Int("issue", ref.Issue))
		return nil
	}
	_, _, err = g.issues.Edit(ctx, ref.Owner, ref.Repo, ref.Issue,
		&github.IssueRequest{Body: &updated})
	if err != nil {
		return fmt.Errorf("update issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Issue, err)
	}
	return nil
}

// WaveCompleted comments on the linked issue when a wave's gate closes.
func (g *GitHub) WaveCompleted(ctx context.Context, ref taskgraph.TrackerRef, wave int) error {
	if ref.Owner == "" || ref.Repo == "" || ref.Issue == 0 {
		return nil
	}
	body := fmt.Sprintf("Wave %d complete: all tasks implemented, tested, and reviewed.", wave)
	_, _, err := g.issues.CreateComment(ctx, ref.Owner, ref.Repo, ref.Issue,
		&github.IssueComment{Body: &body})
	if err != nil {
		return fmt.Errorf("comment on issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Issue, err)
	}
	return nil
}

// checkOff turns the first unchecked markdown checkbox mentioning taskID
// into a checked one.
func checkOff(body, taskID string) string {
	re := regexp.MustCompile(`(?m)^(\s*[-*]\s)\[ \](\s.*\b` + regexp.QuoteMeta(taskID) + `\b.*)$`)
	replaced := false
	return re.ReplaceAllStringFunc(body, func(line string) string {
		if replaced {
			return line
		}
		replaced = true
		return re.ReplaceAllString(line, "${1}[x]${2}")
	})
}

// Nop is a Notifier that does nothing, used when tracker sync is disabled.
type Nop struct{}

func (Nop) TaskCompleted(context.Context, taskgraph.TrackerRef, string) error { return nil }
func (Nop) WaveCompleted(context.Context, taskgraph.TrackerRef, int) error    { return nil }
