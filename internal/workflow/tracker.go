package workflow

import (
	"context"

	"github.com/danielolaszy/ghflow/pkg/models"
)

// Tracker is the issue tracker as seen by the workflow. The GitHub and Jira
// clients implement it; every call may block on the network and may fail.
type Tracker interface {
	FetchIssue(ctx context.Context, repo string, id int) (*models.Issue, error)
	SaveIssue(ctx context.Context, repo string, id int, body string, labels []string) error
	PostComment(ctx context.Context, repo string, id int, text string) error
	CurrentUser(ctx context.Context) (string, error)
	CloseIssue(ctx context.Context, repo string, id int) error
}

// LabelEnsurer is implemented by trackers that need labels created up front.
type LabelEnsurer interface {
	EnsureLabels(ctx context.Context, repo string, labels []string) (created int, err error)
}
