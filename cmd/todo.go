package cmd

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/spf13/cobra"
)

const defaultTodoSection = "Acceptance Criteria"

func newTodoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Add, check and uncheck checklist items in an issue",
	}

	add := &cobra.Command{
		Use:   "add <issue> <text>...",
		Short: "Append an unchecked item to a section",
		Long: `Append an unchecked "- [ ]" item to a section of the issue body. The
section is created when it does not exist.

Example:
  ghflow todo add -r owner/repo 42 --section "Acceptance Criteria" Write the migration`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := cmd.Flags().GetString("section")
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")

			s, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			_, err = s.machine.Edit(cmd.Context(), s.repo, s.number, func(doc *document.Document, _ string) error {
				return doc.AddTodo(section, text)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s added to %s: %s\n", okStyle.Render("✓"), section, text)
			return nil
		},
	}
	add.Flags().StringP("section", "s", defaultTodoSection, "Section to add the item to")

	cmd.AddCommand(add, newTodoSetCmd("check", true), newTodoSetCmd("uncheck", false))
	return cmd
}

func newTodoSetCmd(verb string, checked bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <issue> <todo>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an item by its text or 1-based position",
		Long: fmt.Sprintf(`%s a checklist item. The item is identified by its exact text or by
its 1-based position across all sections, as listed by "ghflow status".

Example:
  ghflow todo %s -r owner/repo 42 2`, strings.ToUpper(verb[:1])+verb[1:], verb),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.Join(args[1:], " ")
			s, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}

			var todo document.Todo
			_, err = s.machine.Edit(cmd.Context(), s.repo, s.number, func(doc *document.Document, _ string) error {
				var err error
				todo, err = doc.SetTodo(ref, checked)
				return err
			})
			if err != nil {
				return err
			}
			mark := "[ ]"
			if todo.Checked {
				mark = "[x]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okStyle.Render("✓"), mark, todo.Text)
			return nil
		},
	}
}
