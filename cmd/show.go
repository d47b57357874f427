package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <issue>",
		Short: "Print an issue body rendered as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := cmd.Flags().GetBool("raw")
			if err != nil {
				return err
			}
			s, err := openSession(cmd, args[0])
			if err != nil {
				return err
			}
			issue, err := s.tracker.FetchIssue(cmd.Context(), s.repo, s.number)
			if err != nil {
				return fmt.Errorf("failed to fetch issue #%d: %w", s.number, err)
			}

			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprint(out, issue.Body)
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s#%d: %s", s.repo, issue.Number, issue.Title)))
			fmt.Fprint(out, renderMarkdown(issue.Body))
			return nil
		},
	}
	cmd.Flags().Bool("raw", false, "Print the body without rendering")
	return cmd
}
