package workflow

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/danielolaszy/ghflow/pkg/models"
)

// GuardInput is what a guard inspects.
type GuardInput struct {
	Issue    *models.Issue
	Doc      *document.Document
	Type     IssueType
	Workflow config.WorkflowConfig
}

// Guard decides whether a transition may proceed. It returns a *GuardError
// listing what is missing.
type Guard func(t Transition, in GuardInput) error

// Transition is one forward step of the lifecycle.
type Transition struct {
	Name    string
	Command string
	Verb    string
	From    State
	To      State
	Guard   Guard

	// ClosesIssue asks the tracker to close the issue after the state is saved.
	ClosesIssue bool
}

var (
	StartPlan = Transition{
		Name: "StartPlan", Command: "start-plan", Verb: "start planning",
		From: Backlog, To: Planning,
	}
	SubmitPlan = Transition{
		Name: "SubmitPlan", Command: "submit-plan", Verb: "submit plan",
		From: Planning, To: AwaitingPlanApproval,
		Guard: requireSections,
	}
	ApprovePlan = Transition{
		Name: "ApprovePlan", Command: "approve-plan", Verb: "approve plan",
		From: AwaitingPlanApproval, To: PlanApproved,
	}
	StartWork = Transition{
		Name: "StartWork", Command: "start-work", Verb: "start work",
		From: PlanApproved, To: InProgress,
	}
	SubmitWork = Transition{
		Name: "SubmitWork", Command: "submit-work", Verb: "submit work",
		From: InProgress, To: AwaitingCompletionApproval,
		Guard: requireSections,
	}
	ApproveWork = Transition{
		Name: "ApproveWork", Command: "approve-work", Verb: "approve work",
		From: AwaitingCompletionApproval, To: Closed,
		Guard:       all(requireTodosChecked, requireConditionsVerified),
		ClosesIssue: true,
	}
)

// Transitions returns the lifecycle transitions in order.
func Transitions() []Transition {
	return []Transition{StartPlan, SubmitPlan, ApprovePlan, StartWork, SubmitWork, ApproveWork}
}

// TransitionFor returns the transition with the given name or command.
func TransitionFor(name string) (Transition, error) {
	for _, t := range Transitions() {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.Command, name) {
			return t, nil
		}
	}
	return Transition{}, fmt.Errorf("unknown transition %q", name)
}

func all(guards ...Guard) Guard {
	return func(t Transition, in GuardInput) error {
		for _, g := range guards {
			if err := g(t, in); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireSections(t Transition, in GuardInput) error {
	var missing []string
	for _, title := range in.Workflow.RequiredSectionsFor(string(in.Type)) {
		if in.Doc.FindSection(title) == nil {
			missing = append(missing, title)
		}
	}
	if len(missing) > 0 {
		return &GuardError{
			Verb:   t.Verb,
			Reason: fmt.Sprintf("%s is missing required sections", in.Type),
			Items:  missing,
		}
	}
	return nil
}

func requireTodosChecked(t Transition, in GuardInput) error {
	open := in.Doc.UncheckedTodos()
	if len(open) == 0 {
		return nil
	}
	items := make([]string, 0, len(open))
	for _, todo := range open {
		items = append(items, todo.Text)
	}
	return &GuardError{Verb: t.Verb, Reason: "issue has unchecked todos", Items: items}
}

func requireConditionsVerified(t Transition, in GuardInput) error {
	open := in.Doc.UnverifiedConditions()
	if len(open) == 0 {
		return nil
	}
	items := make([]string, 0, len(open))
	for _, c := range open {
		items = append(items, c.Text)
	}
	return &GuardError{Verb: t.Verb, Reason: "issue has unverified conditions", Items: items}
}
