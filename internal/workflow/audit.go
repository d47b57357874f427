package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/pkg/models"
)

// AuditWriter records transitions in the issue's Log section.
type AuditWriter struct {
	tracker Tracker
}

// NewAuditWriter returns an AuditWriter that persists through tracker.
func NewAuditWriter(tracker Tracker) *AuditWriter {
	return &AuditWriter{tracker: tracker}
}

// Record saves labels together with the body extended by entry. When the log
// append cannot be saved, the labels are saved on the original body and the
// transition is posted as a comment instead; fallback reports that path.
//
// An error is returned when the labels could not be saved, or when both the
// log append and the comment failed.
func (w *AuditWriter) Record(ctx context.Context, repo string, issue *models.Issue, labels []string, from State, entry document.LogEntry) (fallback bool, err error) {
	log := logging.With("repository", repo, "issue_number", issue.Number)

	var appendErr error
	body, err := document.AppendLogEntry(issue.Body, entry)
	if err != nil {
		appendErr = err
		log.Warn("log entry does not fit in the issue body", "error", err)
	} else if err := w.tracker.SaveIssue(ctx, repo, issue.Number, body, labels); err != nil {
		appendErr = &PersistenceError{Op: "append log entry", Err: err}
		log.Warn("failed to save log entry, saving state change without it", "error", err)
	} else {
		return false, nil
	}

	if err := w.tracker.SaveIssue(ctx, repo, issue.Number, issue.Body, labels); err != nil {
		log.Error("failed to save state change", "error", err)
		return false, &PersistenceError{Op: "update issue state", Err: err}
	}

	if err := w.tracker.PostComment(ctx, repo, issue.Number, FallbackComment(from, entry)); err != nil {
		log.Error("audit comment fallback failed", "error", err, "append_error", appendErr)
		return true, fmt.Errorf("state changed to %q but the audit record was lost (%v): %w", entry.ToState, appendErr, &PersistenceError{Op: "post audit comment", Err: err})
	}
	log.Info("recorded transition as comment", "to_state", entry.ToState)
	return true, nil
}

// FallbackComment renders a transition record for posting as a comment.
func FallbackComment(from State, entry document.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Workflow Transition**: `%s` → `%s`\n", from, entry.ToState)
	fmt.Fprintf(&b, "**Changed by**: @%s\n", entry.Author)
	if entry.Message != "" {
		fmt.Fprintf(&b, "**Message**: %s\n", entry.Message)
	}
	fmt.Fprintf(&b, "**At**: %s UTC\n", entry.Timestamp.UTC().Format(document.TimestampLayout))
	return b.String()
}
