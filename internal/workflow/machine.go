package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/pkg/models"
)

// Result describes an applied transition.
type Result struct {
	Success     bool
	Repository  string
	IssueNumber int
	FromState   State
	ToState     State
	User        string
	Message     string
	IssueClosed bool

	// AuditFallback is set when the record went to a comment instead of the Log section.
	AuditFallback bool
}

// Machine runs transitions and document edits against a tracker. A Machine
// holds no per-issue state; each call fetches, parses and writes on its own.
type Machine struct {
	tracker  Tracker
	audit    *AuditWriter
	workflow config.WorkflowConfig
	now      func() time.Time
}

// NewMachine returns a Machine using the given tracker and workflow configuration.
func NewMachine(tracker Tracker, wf config.WorkflowConfig) *Machine {
	return &Machine{
		tracker:  tracker,
		audit:    NewAuditWriter(tracker),
		workflow: wf,
		now:      time.Now,
	}
}

// Execute applies transition t to issue id in repo. Guard violations come
// back as *GuardError before anything is written.
func (m *Machine) Execute(ctx context.Context, t Transition, repo string, id int, message string) (*Result, error) {
	log := logging.With("repository", repo, "issue_number", id, "transition", t.Name)

	issue, err := m.tracker.FetchIssue(ctx, repo, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", id, err)
	}
	if issue.IsClosed() {
		return nil, &GuardError{Verb: t.Verb, Reason: fmt.Sprintf("issue #%d is closed", id)}
	}
	from := StateFromLabels(issue.Labels, m.workflow.StatusLabelPrefix)
	if from != t.From {
		return nil, &GuardError{
			Verb:   t.Verb,
			Reason: fmt.Sprintf("issue is in '%s' state, '%s' is required", from, t.From),
		}
	}

	doc := document.Parse(issue.Body)
	if t.Guard != nil {
		in := GuardInput{
			Issue:    issue,
			Doc:      doc,
			Type:     TypeFromLabels(issue.Labels, m.workflow.TypeLabelPrefix),
			Workflow: m.workflow,
		}
		if err := t.Guard(t, in); err != nil {
			log.Info("transition rejected", "error", err)
			return nil, err
		}
	}

	user, err := m.tracker.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}
	entry, err := document.NewLogEntry(string(t.To), user, message, m.now())
	if err != nil {
		return nil, err
	}

	labels := WithState(issue.Labels, m.workflow.StatusLabelPrefix, t.To)
	fallback, err := m.audit.Record(ctx, repo, issue, labels, from, entry)
	result := &Result{
		Success:       true,
		Repository:    repo,
		IssueNumber:   id,
		FromState:     from,
		ToState:       t.To,
		User:          entry.Author,
		Message:       entry.Message,
		AuditFallback: fallback,
	}
	if err != nil {
		if !fallback {
			return nil, err
		}
		// The state change is saved; only the audit record is missing.
		return result, err
	}

	if t.ClosesIssue {
		if err := m.tracker.CloseIssue(ctx, repo, id); err != nil {
			log.Error("failed to close issue", "error", err)
			return result, fmt.Errorf("state changed to %q but closing issue #%d failed: %w", t.To, id, err)
		}
		result.IssueClosed = true
	}

	log.Info("transition applied", "from", from, "to", t.To, "user", entry.Author, "audit_fallback", fallback)
	return result, nil
}

// Edit fetches an issue, applies fn to its parsed body and saves the
// regenerated body with the labels unchanged. No save happens when fn fails
// or leaves the body as it was.
func (m *Machine) Edit(ctx context.Context, repo string, id int, fn func(doc *document.Document, user string) error) (*models.Issue, error) {
	issue, err := m.tracker.FetchIssue(ctx, repo, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", id, err)
	}
	user, err := m.tracker.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	doc := document.Parse(issue.Body)
	if err := fn(doc, user); err != nil {
		return nil, err
	}

	body := document.Render(doc)
	if body == issue.Body {
		logging.Debug("issue body unchanged, skipping save", "repository", repo, "issue_number", id)
		return issue, nil
	}
	if err := document.CheckSize(body); err != nil {
		return nil, err
	}
	if err := m.tracker.SaveIssue(ctx, repo, id, body, issue.Labels); err != nil {
		return nil, &PersistenceError{Op: "save issue body", Err: err}
	}
	issue.Body = body
	return issue, nil
}

// Status is a read-only view of an issue's workflow position and document.
type Status struct {
	Issue    *models.Issue
	State    State
	Type     IssueType
	Document *document.Document

	// MissingSections are the required sections the body does not have yet.
	MissingSections []string
	// Next is the transition that leaves the current state, if any.
	Next *Transition
}

// Status fetches and parses an issue without modifying it.
func (m *Machine) Status(ctx context.Context, repo string, id int) (*Status, error) {
	issue, err := m.tracker.FetchIssue(ctx, repo, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", id, err)
	}
	st := &Status{
		Issue:    issue,
		State:    StateFromLabels(issue.Labels, m.workflow.StatusLabelPrefix),
		Type:     TypeFromLabels(issue.Labels, m.workflow.TypeLabelPrefix),
		Document: document.Parse(issue.Body),
	}
	if issue.IsClosed() {
		st.State = Closed
	}
	for _, title := range m.workflow.RequiredSectionsFor(string(st.Type)) {
		if st.Document.FindSection(title) == nil {
			st.MissingSections = append(st.MissingSections, title)
		}
	}
	for _, t := range Transitions() {
		if t.From == st.State {
			next := t
			st.Next = &next
			break
		}
	}
	return st, nil
}
