package workflow

import (
	"context"
	"fmt"

	"github.com/danielolaszy/ghflow/pkg/models"
)

// fakeTracker keeps issues in memory. The *Func fields override a method so
// tests can inject failures.
type fakeTracker struct {
	issues   map[int]*models.Issue
	user     string
	comments []string
	saves    int
	closed   []int

	SaveIssueFunc   func(id int, body string, labels []string) error
	PostCommentFunc func(id int, text string) error
	CloseIssueFunc  func(id int) error
}

func newFakeTracker(issues ...*models.Issue) *fakeTracker {
	f := &fakeTracker{issues: map[int]*models.Issue{}, user: "alice"}
	for _, issue := range issues {
		f.issues[issue.Number] = issue
	}
	return f
}

func (f *fakeTracker) FetchIssue(_ context.Context, _ string, id int) (*models.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", id)
	}
	cp := *issue
	cp.Labels = append([]string(nil), issue.Labels...)
	return &cp, nil
}

func (f *fakeTracker) SaveIssue(_ context.Context, _ string, id int, body string, labels []string) error {
	f.saves++
	if f.SaveIssueFunc != nil {
		if err := f.SaveIssueFunc(id, body, labels); err != nil {
			return err
		}
	}
	issue := f.issues[id]
	issue.Body = body
	issue.Labels = append([]string(nil), labels...)
	return nil
}

func (f *fakeTracker) PostComment(_ context.Context, _ string, id int, text string) error {
	if f.PostCommentFunc != nil {
		if err := f.PostCommentFunc(id, text); err != nil {
			return err
		}
	}
	f.comments = append(f.comments, text)
	return nil
}

func (f *fakeTracker) CurrentUser(_ context.Context) (string, error) {
	return f.user, nil
}

func (f *fakeTracker) CloseIssue(_ context.Context, _ string, id int) error {
	if f.CloseIssueFunc != nil {
		if err := f.CloseIssueFunc(id); err != nil {
			return err
		}
	}
	f.issues[id].State = models.StateClosed
	f.closed = append(f.closed, id)
	return nil
}
