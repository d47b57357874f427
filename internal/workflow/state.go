// Package workflow implements the issue lifecycle: the ordered states, the
// guarded transitions between them, and the audit record each transition
// leaves in the issue body.
package workflow

import (
	"fmt"
	"strings"
)

// State is a lifecycle state, stored on the issue as a prefixed label.
type State string

const (
	Backlog                    State = "backlog"
	Planning                   State = "planning"
	AwaitingPlanApproval       State = "awaiting-plan-approval"
	PlanApproved               State = "plan-approved"
	InProgress                 State = "in-progress"
	AwaitingCompletionApproval State = "awaiting-completion-approval"
	Closed                     State = "closed"
)

// States lists every state in lifecycle order.
var States = []State{
	Backlog,
	Planning,
	AwaitingPlanApproval,
	PlanApproved,
	InProgress,
	AwaitingCompletionApproval,
	Closed,
}

// ParseState returns the State named s.
func ParseState(s string) (State, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown workflow state %q", s)
}

// Label returns the label that marks an issue as being in this state.
func (s State) Label(prefix string) string {
	return prefix + string(s)
}

// StateFromLabels derives the workflow state from an issue's labels. The
// first label carrying the prefix and a known state wins; an issue without
// one is in the backlog.
func StateFromLabels(labels []string, prefix string) State {
	for _, label := range labels {
		value, ok := cutPrefixFold(label, prefix)
		if !ok {
			continue
		}
		if st, err := ParseState(value); err == nil {
			return st
		}
	}
	return Backlog
}

// WithState returns labels with every status label replaced by the label for s.
// Labels without the prefix keep their order.
func WithState(labels []string, prefix string, s State) []string {
	out := make([]string, 0, len(labels)+1)
	for _, label := range labels {
		if _, ok := cutPrefixFold(label, prefix); ok {
			continue
		}
		out = append(out, label)
	}
	return append(out, s.Label(prefix))
}

// IssueType classifies a work item.
type IssueType string

const (
	Epic    IssueType = "epic"
	Task    IssueType = "task"
	SubTask IssueType = "sub-task"
)

// IssueTypes lists the known issue types.
var IssueTypes = []IssueType{Epic, Task, SubTask}

// TypeFromLabels reads the issue type label; issues without one are tasks.
func TypeFromLabels(labels []string, prefix string) IssueType {
	for _, label := range labels {
		value, ok := cutPrefixFold(label, prefix)
		if !ok {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		for _, kind := range IssueTypes {
			if string(kind) == value {
				return kind
			}
		}
	}
	return Task
}

func cutPrefixFold(label, prefix string) (string, bool) {
	if prefix == "" || len(label) < len(prefix) || !strings.EqualFold(label[:len(prefix)], prefix) {
		return "", false
	}
	return label[len(prefix):], true
}
