package cmd

import (
	"fmt"

	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workflow labels in a repository",
		Long: `Initialize a repository with the labels the workflow uses: one status
label per state and one type label per issue type, named with the configured
prefixes (by default 'status: planning', 'type: epic', ...). Existing labels
are left alone.

Example:
  ghflow init -r owner/repo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repository, err := cmd.Flags().GetString("repository")
			if err != nil {
				return err
			}
			if repository == "" {
				return fmt.Errorf("repository flag is required")
			}

			cfg, tracker, err := connect(cmd)
			if err != nil {
				return err
			}
			ensurer, ok := tracker.(workflow.LabelEnsurer)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "The %s tracker creates labels on first use; nothing to initialize.\n", cfg.Tracker)
				return nil
			}

			labels := workflowLabels(cfg.Workflow.StatusLabelPrefix, cfg.Workflow.TypeLabelPrefix)
			logging.Info("initializing repository labels", "repository", repository, "labels", len(labels))
			created, err := ensurer.EnsureLabels(cmd.Context(), repository, labels)
			if err != nil {
				return fmt.Errorf("failed to initialize labels: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s initialized: %d labels created, %d already present\n",
				okStyle.Render("✓"), repository, created, len(labels)-created)
			return nil
		},
	}
}

// workflowLabels lists every status and type label in lifecycle order.
func workflowLabels(statusPrefix, typePrefix string) []string {
	labels := make([]string, 0, len(workflow.States)+len(workflow.IssueTypes))
	for _, s := range workflow.States {
		labels = append(labels, s.Label(statusPrefix))
	}
	for _, t := range workflow.IssueTypes {
		labels = append(labels, typePrefix+string(t))
	}
	return labels
}
