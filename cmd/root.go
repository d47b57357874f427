// Package cmd provides the command-line interface for ghflow.
package cmd

import (
	"os"

	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newRootCmd builds the full command tree. A fresh tree per invocation keeps
// flag values from leaking between runs.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghflow",
		Short: "ghflow drives issues through a planning and approval workflow",
		Long: `ghflow is a CLI tool that moves tracker issues through a fixed lifecycle:

  backlog → planning → awaiting-plan-approval → plan-approved →
  in-progress → awaiting-completion-approval → closed

The current state is stored as a label on the issue. Every transition is
recorded in a "## Log" section at the end of the issue body. Transitions are
guarded: plans and work cannot be submitted without the sections required for
the issue type, and work cannot be approved while todos are unchecked or
conditions unverified.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
				DisableColor()
			}
		},
	}

	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("repository", "r", "", "Repository (e.g., 'owner/repo'), or the Jira project key")
	rootCmd.PersistentFlags().String("tracker", "", "Issue tracker backend: github or jira (default from GHFLOW_TRACKER)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default .ghflow.yaml in the working or home directory)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(newInitCmd())
	for _, t := range workflow.Transitions() {
		rootCmd.AddCommand(newTransitionCmd(t))
	}
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newTodoCmd())
	rootCmd.AddCommand(newConditionCmd())

	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}
