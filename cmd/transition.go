package cmd

import (
	"fmt"

	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/spf13/cobra"
)

var transitionHelp = map[string]string{
	"StartPlan":   "Begin planning a backlog issue.",
	"SubmitPlan":  "Submit the plan for approval. The issue must have every section its type requires.",
	"ApprovePlan": "Approve a submitted plan.",
	"StartWork":   "Start implementing an approved plan.",
	"SubmitWork":  "Submit finished work for approval. Required sections are checked again.",
	"ApproveWork": "Approve completed work and close the issue. Every todo must be checked and every condition verified.",
}

// newTransitionCmd builds the command that applies t to one issue.
func newTransitionCmd(t workflow.Transition) *cobra.Command {
	cmd := &cobra.Command{
		Use:   t.Command + " <issue>",
		Short: fmt.Sprintf("Move an issue from %s to %s", t.From, t.To),
		Long: fmt.Sprintf(`%s

The issue must be in the '%s' state. On success its status label is replaced
with '%s' and the transition is appended to the issue's Log section.

Example:
  ghflow %s -r owner/repo 42 -m "Looks good"`, transitionHelp[t.Name], t.From, t.To, t.Command),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := cmd.Flags().GetString("message")
			if err != nil {
				return err
			}

			s, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}

			logging.Info("applying transition", "transition", t.Name, "repository", s.repo, "issue_number", s.number)
			result, err := s.machine.Execute(cmd.Context(), t, s.repo, s.number, message)
			if result != nil {
				printResult(cmd, result)
			}
			return err
		},
	}
	cmd.Flags().StringP("message", "m", "", "Message recorded with the transition")
	return cmd
}

func printResult(cmd *cobra.Command, r *workflow.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s#%d: %s → %s %s\n",
		okStyle.Render("✓"), r.Repository, r.IssueNumber,
		stateText(r.FromState), stateText(r.ToState),
		dimStyle.Render("(by @"+r.User+")"))
	if r.AuditFallback {
		fmt.Fprintln(out, warnStyle.Render("! the Log section could not be updated; the transition was recorded as a comment"))
	}
	if r.IssueClosed {
		fmt.Fprintln(out, "Issue closed.")
	}
}
