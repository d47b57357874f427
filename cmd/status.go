package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <issue>",
		Short: "Show an issue's workflow state and checklist progress",
		Long: `Show where an issue is in the workflow: its state and type, the next
transition, checklist progress per section, conditions, the sections still
missing for its type, and the latest log entry.

Example:
  ghflow status -r owner/repo 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			st, err := s.machine.Status(cmd.Context(), s.repo, s.number)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), s.repo, st)
			return nil
		},
	}
}

func printStatus(w io.Writer, repo string, st *workflow.Status) {
	doc := st.Document
	field := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-11s", name+":")), value)
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s#%d: %s", repo, st.Issue.Number, st.Issue.Title)))
	field("State", stateText(st.State))
	field("Type", string(st.Type))
	if st.Next != nil {
		field("Next", fmt.Sprintf("%s → %s", st.Next.Command, stateText(st.Next.To)))
	}

	todos := doc.AllTodos()
	done := len(todos) - len(doc.UncheckedTodos())
	field("Todos", fmt.Sprintf("%d/%d", done, len(todos)))
	for _, sec := range doc.Sections {
		if sec.TotalTodos() == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-30s %d/%d %s\n", sec.Title, sec.CompletedTodos(), sec.TotalTodos(),
			percentText(sec.CompletionPercentage()))
	}

	if len(doc.Conditions) > 0 {
		verified := len(doc.Conditions) - len(doc.UnverifiedConditions())
		field("Conditions", fmt.Sprintf("%d/%d verified", verified, len(doc.Conditions)))
		for _, c := range doc.Conditions {
			line := fmt.Sprintf("  %s %s", conditionMark(c), c.Text)
			if c.Verified {
				line += dimStyle.Render(" (" + c.SignedOffBy + ")")
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(st.MissingSections) > 0 {
		field("Missing", warnStyle.Render(strings.Join(st.MissingSections, ", ")))
	}

	if n := len(doc.LogEntries); n > 0 {
		last := doc.LogEntries[n-1]
		field("Log", fmt.Sprintf("%d entries, last → %s by @%s at %s UTC",
			n, last.ToState, last.Author, last.Timestamp.Format(document.TimestampLayout)))
	} else {
		field("Log", dimStyle.Render("no entries"))
	}

	for _, warning := range doc.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warning))
	}
}

func percentText(p int) string {
	text := fmt.Sprintf("%d%%", p)
	if p == 100 {
		return okStyle.Render(text)
	}
	return dimStyle.Render(text)
}

func conditionMark(c *document.Condition) string {
	if c.Verified {
		return okStyle.Render("[x]")
	}
	if c.Evidence == "" {
		return errorStyle.Render("[ ]")
	}
	return warnStyle.Render("[ ]")
}
