package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/danielolaszy/ghflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepo = "org/repo"

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const taskBody = "## Summary\nX\n\n## Acceptance Criteria\n- [ ] A\n- [x] B"

func newIssue(body string, state State, extra ...string) *models.Issue {
	labels := append([]string{"bug"}, extra...)
	if state != "" {
		labels = append(labels, state.Label("status: "))
	}
	return &models.Issue{Number: 42, Title: "Test", Body: body, State: models.StateOpen, Labels: labels}
}

func newTestMachine(f *fakeTracker) *Machine {
	m := NewMachine(f, config.DefaultWorkflow())
	m.now = func() time.Time { return fixedNow }
	return m
}

func TestExecuteStartPlan(t *testing.T) {
	f := newFakeTracker(newIssue(taskBody, ""))
	m := newTestMachine(f)

	result, err := m.Execute(context.Background(), StartPlan, testRepo, 42, "")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, Backlog, result.FromState)
	assert.Equal(t, Planning, result.ToState)
	assert.Equal(t, "alice", result.User)
	assert.False(t, result.AuditFallback)
	assert.False(t, result.IssueClosed)

	saved := f.issues[42]
	assert.Equal(t, []string{"bug", "status: planning"}, saved.Labels)
	assert.Equal(t, taskBody+"\n\n## Log\n\n---\n### → planning [2026-10-14 09:30:00 UTC]\n\n*by @alice*\n", saved.Body)
	assert.Equal(t, 1, f.saves, "labels and log entry are saved together")
	assert.Empty(t, f.comments)
}

func TestExecuteFullLifecycle(t *testing.T) {
	body := taskBody + "\n\n## Conditions\n\n### CONDITION: Deploy\n- [ ] VERIFIED"
	f := newFakeTracker(newIssue(body, ""))
	m := newTestMachine(f)
	ctx := context.Background()

	for _, tr := range []Transition{StartPlan, SubmitPlan, ApprovePlan, StartWork, SubmitWork} {
		_, err := m.Execute(ctx, tr, testRepo, 42, "")
		require.NoError(t, err, tr.Name)
	}

	_, err := m.Execute(ctx, ApproveWork, testRepo, 42, "")
	require.Error(t, err)
	assert.EqualError(t, err, "Cannot approve work: issue has unchecked todos: A")

	_, err = m.Edit(ctx, testRepo, 42, func(doc *document.Document, _ string) error {
		_, err := doc.SetTodo("A", true)
		return err
	})
	require.NoError(t, err)

	_, err = m.Execute(ctx, ApproveWork, testRepo, 42, "")
	assert.EqualError(t, err, "Cannot approve work: issue has unverified conditions: Deploy")

	_, err = m.Edit(ctx, testRepo, 42, func(doc *document.Document, user string) error {
		if _, err := doc.AttachEvidence("Deploy", "https://ci.example.com/1"); err != nil {
			return err
		}
		_, err := doc.VerifyCondition("Deploy", user)
		return err
	})
	require.NoError(t, err)

	result, err := m.Execute(ctx, ApproveWork, testRepo, 42, "Shipped")
	require.NoError(t, err)
	assert.True(t, result.IssueClosed)
	assert.Equal(t, Closed, result.ToState)
	assert.Equal(t, []int{42}, f.closed)

	doc := document.Parse(f.issues[42].Body)
	require.Len(t, doc.LogEntries, 6)
	var states []string
	for _, e := range doc.LogEntries {
		states = append(states, e.ToState)
	}
	assert.Equal(t, []string{
		"planning", "awaiting-plan-approval", "plan-approved",
		"in-progress", "awaiting-completion-approval", "closed",
	}, states)
	assert.Equal(t, "Shipped", doc.LogEntries[5].Message)
	assert.Equal(t, "@alice", doc.FindCondition("Deploy").SignedOffBy)
	assert.Contains(t, f.issues[42].Labels, "status: closed")
}

func TestExecuteGuards(t *testing.T) {
	testCases := []struct {
		name       string
		issue      *models.Issue
		transition Transition
		expected   string
	}{
		{
			name:       "Wrong state",
			issue:      newIssue(taskBody, Planning),
			transition: StartPlan,
			expected:   "Cannot start planning: issue is in 'planning' state, 'backlog' is required",
		},
		{
			name: "Closed issue",
			issue: func() *models.Issue {
				i := newIssue(taskBody, "")
				i.State = models.StateClosed
				return i
			}(),
			transition: StartPlan,
			expected:   "Cannot start planning: issue #42 is closed",
		},
		{
			name:       "Task missing sections",
			issue:      newIssue("## Summary\nS", Planning),
			transition: SubmitPlan,
			expected:   "Cannot submit plan: task is missing required sections: Acceptance Criteria",
		},
		{
			name:       "Epic missing sections",
			issue:      newIssue("Nothing here", InProgress, "type: Epic"),
			transition: SubmitWork,
			expected:   "Cannot submit work: epic is missing required sections: Summary, Success Criteria",
		},
		{
			name:       "Unchecked todos",
			issue:      newIssue(taskBody, AwaitingCompletionApproval),
			transition: ApproveWork,
			expected:   "Cannot approve work: issue has unchecked todos: A",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeTracker(tc.issue)
			before := *tc.issue
			m := newTestMachine(f)

			result, err := m.Execute(context.Background(), tc.transition, testRepo, 42, "")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, IsGuardViolation(err))
			assert.EqualError(t, err, tc.expected)

			assert.Zero(t, f.saves, "a rejected transition writes nothing")
			assert.Empty(t, f.comments)
			assert.Equal(t, before.Body, f.issues[42].Body)
		})
	}
}

func TestExecuteSubTaskNeedsOnlySummary(t *testing.T) {
	f := newFakeTracker(newIssue("## Summary\nS", Planning, "type: sub-task"))
	m := newTestMachine(f)

	result, err := m.Execute(context.Background(), SubmitPlan, testRepo, 42, "")
	require.NoError(t, err)
	assert.Equal(t, AwaitingPlanApproval, result.ToState)
}

func TestExecuteFetchError(t *testing.T) {
	m := newTestMachine(newFakeTracker())

	_, err := m.Execute(context.Background(), StartPlan, testRepo, 7, "")
	require.Error(t, err)
	assert.False(t, IsGuardViolation(err))
	assert.Contains(t, err.Error(), "failed to fetch issue #7")
}

func TestExecuteAuditFallback(t *testing.T) {
	t.Run("Log append rejected", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, ""))
		f.SaveIssueFunc = func(_ int, body string, _ []string) error {
			if strings.Contains(body, "## Log") {
				return errors.New("body rejected")
			}
			return nil
		}
		m := newTestMachine(f)

		result, err := m.Execute(context.Background(), StartPlan, testRepo, 42, "Kickoff")
		require.NoError(t, err)
		assert.True(t, result.AuditFallback)

		assert.Equal(t, taskBody, f.issues[42].Body, "original body is kept")
		assert.Contains(t, f.issues[42].Labels, "status: planning")
		require.Len(t, f.comments, 1)
		assert.Equal(t,
			"**Workflow Transition**: `backlog` → `planning`\n**Changed by**: @alice\n**Message**: Kickoff\n**At**: 2026-10-14 09:30:00 UTC\n",
			f.comments[0])
	})

	t.Run("Body at size limit", func(t *testing.T) {
		body := "## Summary\n" + strings.Repeat("x", document.MaxBodyLength-11)
		f := newFakeTracker(newIssue(body, ""))
		m := newTestMachine(f)

		result, err := m.Execute(context.Background(), StartPlan, testRepo, 42, "")
		require.NoError(t, err)
		assert.True(t, result.AuditFallback)
		assert.Equal(t, 1, f.saves, "only the label update is saved")
		assert.Len(t, f.comments, 1)
	})

	t.Run("Comment fails too", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, ""))
		f.SaveIssueFunc = func(_ int, body string, _ []string) error {
			if strings.Contains(body, "## Log") {
				return errors.New("body rejected")
			}
			return nil
		}
		f.PostCommentFunc = func(int, string) error { return errors.New("comments disabled") }
		m := newTestMachine(f)

		result, err := m.Execute(context.Background(), StartPlan, testRepo, 42, "")
		require.Error(t, err)
		require.NotNil(t, result, "the state change itself succeeded")
		assert.True(t, result.AuditFallback)
		assert.Contains(t, f.issues[42].Labels, "status: planning")

		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "post audit comment", perr.Op)
	})

	t.Run("State cannot be saved", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, ""))
		f.SaveIssueFunc = func(int, string, []string) error { return errors.New("503") }
		m := newTestMachine(f)

		result, err := m.Execute(context.Background(), StartPlan, testRepo, 42, "")
		require.Error(t, err)
		assert.Nil(t, result)

		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "update issue state", perr.Op)
		assert.Empty(t, f.comments)
		assert.Equal(t, []string{"bug"}, f.issues[42].Labels)
	})
}

func TestExecuteCloseFailure(t *testing.T) {
	f := newFakeTracker(newIssue("## Summary\nS", AwaitingCompletionApproval))
	f.CloseIssueFunc = func(int) error { return errors.New("forbidden") }
	m := newTestMachine(f)

	result, err := m.Execute(context.Background(), ApproveWork, testRepo, 42, "")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IssueClosed)
	assert.Contains(t, f.issues[42].Labels, "status: closed")
	assert.Contains(t, err.Error(), "closing issue #42 failed")
}

func TestEdit(t *testing.T) {
	t.Run("Saves changed body", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, InProgress))
		m := newTestMachine(f)

		issue, err := m.Edit(context.Background(), testRepo, 42, func(doc *document.Document, _ string) error {
			return doc.AddTodo("Acceptance Criteria", "C")
		})
		require.NoError(t, err)
		assert.Equal(t, taskBody+"\n- [ ] C", issue.Body)
		assert.Equal(t, issue.Body, f.issues[42].Body)
		assert.Contains(t, f.issues[42].Labels, "status: in-progress", "labels are unchanged")
	})

	t.Run("Unchanged body is not saved", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, InProgress))
		m := newTestMachine(f)

		_, err := m.Edit(context.Background(), testRepo, 42, func(doc *document.Document, _ string) error {
			_, err := doc.SetTodo("B", true)
			return err
		})
		require.NoError(t, err)
		assert.Zero(t, f.saves)
	})

	t.Run("Callback error", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, InProgress))
		m := newTestMachine(f)

		_, err := m.Edit(context.Background(), testRepo, 42, func(doc *document.Document, _ string) error {
			_, err := doc.SetTodo("missing", true)
			return err
		})
		require.Error(t, err)
		assert.Zero(t, f.saves)
	})

	t.Run("Save failure", func(t *testing.T) {
		f := newFakeTracker(newIssue(taskBody, InProgress))
		f.SaveIssueFunc = func(int, string, []string) error { return errors.New("boom") }
		m := newTestMachine(f)

		_, err := m.Edit(context.Background(), testRepo, 42, func(doc *document.Document, _ string) error {
			return doc.AddTodo("Acceptance Criteria", "C")
		})
		var perr *PersistenceError
		require.True(t, errors.As(err, &perr))
	})
}

func TestStatus(t *testing.T) {
	f := newFakeTracker(newIssue("## Summary\nS\n- [x] done", PlanApproved, "type: epic"))
	m := newTestMachine(f)

	st, err := m.Status(context.Background(), testRepo, 42)
	require.NoError(t, err)

	assert.Equal(t, PlanApproved, st.State)
	assert.Equal(t, Epic, st.Type)
	assert.Equal(t, []string{"Success Criteria"}, st.MissingSections)
	require.NotNil(t, st.Next)
	assert.Equal(t, "start-work", st.Next.Command)
	assert.Len(t, st.Document.AllTodos(), 1)
	assert.Zero(t, f.saves)
}

func TestStatusClosedIssue(t *testing.T) {
	issue := newIssue("## Summary\nS", InProgress)
	issue.State = models.StateClosed
	m := newTestMachine(newFakeTracker(issue))

	st, err := m.Status(context.Background(), testRepo, 42)
	require.NoError(t, err)
	assert.Equal(t, Closed, st.State)
	assert.Nil(t, st.Next)
}
