// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Tracker backends.
const (
	TrackerGitHub = "github"
	TrackerJira   = "jira"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Tracker  string
	GitHub   GitHubConfig
	Jira     JiraConfig
	Workflow WorkflowConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	BaseURL  string
	Username string
	Token    string
}

// WorkflowConfig controls how workflow state is read from and written to labels,
// and which sections each issue type must carry before it can be submitted.
type WorkflowConfig struct {
	StatusLabelPrefix string
	TypeLabelPrefix   string
	RequiredSections  map[string][]string
}

// RequiredSectionsFor returns the section titles an issue type must contain.
func (w WorkflowConfig) RequiredSectionsFor(issueType string) []string {
	return w.RequiredSections[strings.ToLower(issueType)]
}

// DefaultWorkflowFor returns the default workflow for a tracker. Jira labels
// cannot contain spaces, so its prefixes drop the one after the colon.
func DefaultWorkflowFor(tracker string) WorkflowConfig {
	wf := DefaultWorkflow()
	if tracker == TrackerJira {
		wf.StatusLabelPrefix = "status:"
		wf.TypeLabelPrefix = "type:"
	}
	return wf
}

// DefaultWorkflow returns the workflow configuration used when no config file overrides it.
func DefaultWorkflow() WorkflowConfig {
	return WorkflowConfig{
		StatusLabelPrefix: "status: ",
		TypeLabelPrefix:   "type: ",
		RequiredSections: map[string][]string{
			"epic":     {"Summary", "Success Criteria"},
			"task":     {"Summary", "Acceptance Criteria"},
			"sub-task": {"Summary"},
		},
	}
}

// LoadConfig loads configuration from environment variables and the default
// config file locations (.ghflow.yaml in the working or home directory).
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile loads configuration from environment variables and the given
// YAML file. An empty path searches the default locations; a missing default
// file is not an error.
func LoadConfigFile(path string) (*Config, error) {
	return Load(path, nil)
}

// Load is LoadConfigFile with command-line flags layered on top. A "tracker"
// flag in flags, when set, overrides GHFLOW_TRACKER and the config file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if flags != nil {
		if f := flags.Lookup("tracker"); f != nil {
			if err := v.BindPFlag("tracker", f); err != nil {
				return nil, fmt.Errorf("failed to bind tracker flag: %w", err)
			}
		}
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("tracker", "GHFLOW_TRACKER")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")

	v.SetDefault("tracker", TrackerGitHub)
	v.SetDefault("github.domain", "github.com")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".ghflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logging.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	tracker := strings.ToLower(v.GetString("tracker"))
	def := DefaultWorkflowFor(tracker)
	v.SetDefault("workflow.status_label_prefix", def.StatusLabelPrefix)
	v.SetDefault("workflow.type_label_prefix", def.TypeLabelPrefix)
	v.SetDefault("workflow.required_sections", def.RequiredSections)

	config := &Config{
		Tracker: tracker,
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: v.GetString("github.domain"),
		},
		Jira: JiraConfig{
			BaseURL:  v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
	}
	if config.GitHub.Domain == "" {
		config.GitHub.Domain = "github.com"
	}
	// Keys are read one by one so a config file that sets only some of them
	// keeps the defaults for the rest.
	config.Workflow = WorkflowConfig{
		StatusLabelPrefix: v.GetString("workflow.status_label_prefix"),
		TypeLabelPrefix:   v.GetString("workflow.type_label_prefix"),
		RequiredSections:  normalizeSections(v.GetStringMapStringSlice("workflow.required_sections")),
	}
	// viper replaces a map default wholesale, so issue types the file does
	// not mention are filled in here. An explicit empty list stays empty.
	for kind, titles := range def.RequiredSections {
		if _, ok := config.Workflow.RequiredSections[kind]; !ok {
			config.Workflow.RequiredSections[kind] = titles
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	logging.Debug("configuration loaded",
		"tracker", config.Tracker,
		"github_domain", config.GitHub.Domain,
		"github_token", logging.MaskSensitive(config.GitHub.Token))

	return config, nil
}

// normalizeSections lower-cases issue type keys and drops blank titles.
func normalizeSections(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for kind, titles := range in {
		var kept []string
		for _, t := range titles {
			if t = strings.TrimSpace(t); t != "" {
				kept = append(kept, t)
			}
		}
		out[strings.ToLower(strings.TrimSpace(kind))] = kept
	}
	return out
}

// validateConfig ensures that all required configuration values are provided
// for the selected tracker.
func validateConfig(config *Config) error {
	switch config.Tracker {
	case TrackerGitHub:
		return ValidateGitHubConfig(config)
	case TrackerJira:
		return ValidateJiraConfig(config)
	}
	return fmt.Errorf("unknown tracker %q, expected %q or %q", config.Tracker, TrackerGitHub, TrackerJira)
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variables: %v", []string{"GITHUB_TOKEN"})
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.BaseURL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
