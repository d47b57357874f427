package cmd

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/ghflow/internal/document"
	"github.com/spf13/cobra"
)

func newConditionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "condition",
		Short: "Manage verification conditions on an issue",
		Long: `Conditions are named gates written as "### CONDITION:" blocks in the
issue body. Work cannot be approved until every condition is verified, and a
condition cannot be verified before evidence is attached.`,
	}

	add := &cobra.Command{
		Use:   "add <issue> <condition>",
		Short: "Add an unverified condition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requirements, err := cmd.Flags().GetString("requirements")
			if err != nil {
				return err
			}
			return editCondition(cmd, args[0], "added", func(doc *document.Document, _ string) (*document.Condition, error) {
				return doc.AddCondition(args[1], requirements)
			})
		},
	}
	add.Flags().String("requirements", "", "What must hold for the condition to be verified")

	evidence := &cobra.Command{
		Use:   "evidence <issue> <condition> <evidence>...",
		Short: "Attach evidence to a condition",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[2:], " ")
			return editCondition(cmd, args[0], "evidence attached", func(doc *document.Document, _ string) (*document.Condition, error) {
				return doc.AttachEvidence(args[1], text)
			})
		},
	}

	verify := &cobra.Command{
		Use:   "verify <issue> <condition>",
		Short: "Sign off a condition as the current user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editCondition(cmd, args[0], "verified", func(doc *document.Document, user string) (*document.Condition, error) {
				return doc.VerifyCondition(args[1], user)
			})
		},
	}

	cmd.AddCommand(add, evidence, verify)
	return cmd
}

func editCondition(cmd *cobra.Command, issueArg, done string, fn func(doc *document.Document, user string) (*document.Condition, error)) error {
	s, err := openSession(cmd, issueArg)
	if err != nil {
		return err
	}
	var c *document.Condition
	_, err = s.machine.Edit(cmd.Context(), s.repo, s.number, func(doc *document.Document, user string) error {
		var err error
		c, err = fn(doc, user)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s condition %q %s\n", okStyle.Render("✓"), c.Text, done)
	return nil
}
