package cmd

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/github"
	"github.com/danielolaszy/ghflow/internal/jira"
	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/spf13/cobra"
)

// newTracker connects to the configured tracker. Tests replace it with a fake.
var newTracker = func(ctx context.Context, cfg *config.Config) (workflow.Tracker, error) {
	switch cfg.Tracker {
	case config.TrackerJira:
		client, err := jira.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JIRA client: %w", err)
		}
		return client, nil
	default:
		client, err := github.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GitHub client: %w", err)
		}
		return client, nil
	}
}

// session is what a command needs to talk to one issue.
type session struct {
	cfg     *config.Config
	tracker workflow.Tracker
	machine *workflow.Machine
	repo    string
	number  int
}

// Accepted issue references: "42", "#42", "owner/repo#42" and Jira keys like "PROJ-42".
var (
	numberRefRe = regexp.MustCompile(`^#?(\d+)$`)
	repoRefRe   = regexp.MustCompile(`^([^/\s#]+/[^/\s#]+)#(\d+)$`)
	jiraRefRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)-(\d+)$`)
)

// parseIssueRef resolves an issue argument against the --repository flag.
// A repository embedded in the argument takes precedence.
func parseIssueRef(arg, repository string) (string, int, error) {
	arg = strings.TrimSpace(arg)
	var repo, num string
	switch {
	case numberRefRe.MatchString(arg):
		m := numberRefRe.FindStringSubmatch(arg)
		repo, num = repository, m[1]
	case repoRefRe.MatchString(arg):
		m := repoRefRe.FindStringSubmatch(arg)
		repo, num = m[1], m[2]
	case jiraRefRe.MatchString(arg):
		m := jiraRefRe.FindStringSubmatch(arg)
		repo, num = strings.ToUpper(m[1]), m[2]
	default:
		return "", 0, fmt.Errorf("invalid issue reference %q, expected a number, owner/repo#number or KEY-number", arg)
	}
	if repo == "" {
		return "", 0, fmt.Errorf("repository flag is required")
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid issue number %q", num)
	}
	return repo, n, nil
}

// loadConfig reads configuration, honouring the --config and --tracker flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// connect loads configuration and the tracker without resolving an issue.
func connect(cmd *cobra.Command) (*config.Config, workflow.Tracker, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := newTracker(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tracker, nil
}

// openSession resolves the issue argument and connects to the tracker.
func openSession(cmd *cobra.Command, issueArg string) (*session, error) {
	repository, err := cmd.Flags().GetString("repository")
	if err != nil {
		return nil, err
	}
	repo, number, err := parseIssueRef(issueArg, repository)
	if err != nil {
		return nil, err
	}

	cfg, tracker, err := connect(cmd)
	if err != nil {
		return nil, err
	}
	logging.Debug("session opened", "tracker", cfg.Tracker, "repository", repo, "issue_number", number)
	return &session{
		cfg:     cfg,
		tracker: tracker,
		machine: workflow.NewMachine(tracker, cfg.Workflow),
		repo:    repo,
		number:  number,
	}, nil
}
