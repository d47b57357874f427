// Package jira provides the Jira backend for the workflow. A "repository" is
// a Jira project key and an issue number n addresses the issue KEY-n.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/cenkalti/backoff/v4"
	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/pkg/models"
)

const retryMaxElapsed = 30 * time.Second

// statusCategoryDone is the key of Jira's terminal status category.
const statusCategoryDone = "done"

var projectKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Client handles interactions with the JIRA API
type Client struct {
	client *jira.Client

	user       string
	newBackOff func() backoff.BackOff
}

func newRetryBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// NewClient creates a JIRA client using basic authentication with an API token.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Jira.Username,
		Password: cfg.Jira.Token,
	}
	logging.Info("jira configuration",
		"url", cfg.Jira.BaseURL,
		"username", cfg.Jira.Username,
		"token", logging.MaskSensitive(cfg.Jira.Token))

	return newClient(tp.Client(), cfg.Jira.BaseURL)
}

func newClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}
	return &Client{client: client, newBackOff: newRetryBackOff}, nil
}

// issueKey builds "KEY-n" from a project key and issue number.
func issueKey(project string, number int) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(project))
	if !projectKeyRe.MatchString(key) {
		return "", fmt.Errorf("invalid project key: %q, expected a Jira project key such as PROJ", project)
	}
	if number <= 0 {
		return "", fmt.Errorf("invalid issue number: %d", number)
	}
	return fmt.Sprintf("%s-%d", key, number), nil
}

// FetchIssue retrieves an issue. Issues in the "done" status category are
// reported as closed.
func (c *Client) FetchIssue(ctx context.Context, project string, number int) (*models.Issue, error) {
	key, err := issueKey(project, number)
	if err != nil {
		return nil, err
	}

	var issue *jira.Issue
	err = c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		issue, resp, err = c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{
			Fields: "summary,description,labels,status",
		})
		return resp, err
	})
	if err != nil {
		logging.Error("failed to get jira issue", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get JIRA issue %s: %w", key, err)
	}
	if issue.Fields == nil {
		return nil, fmt.Errorf("JIRA issue %s has no fields", key)
	}

	state := models.StateOpen
	if s := issue.Fields.Status; s != nil && s.StatusCategory.Key == statusCategoryDone {
		state = models.StateClosed
	}
	return &models.Issue{
		Number: number,
		Title:  issue.Fields.Summary,
		Body:   issue.Fields.Description,
		State:  state,
		Labels: append([]string{}, issue.Fields.Labels...),
	}, nil
}

// SaveIssue replaces the description and labels of an issue.
func (c *Client) SaveIssue(ctx context.Context, project string, number int, body string, labels []string) error {
	key, err := issueKey(project, number)
	if err != nil {
		return err
	}
	for _, label := range labels {
		if strings.ContainsAny(label, " \t\n") {
			return fmt.Errorf("jira labels cannot contain whitespace: %q", label)
		}
	}

	data := map[string]interface{}{
		"fields": map[string]interface{}{
			"description": body,
			"labels":      append([]string{}, labels...),
		},
	}
	err = c.withRetry(ctx, func() (*jira.Response, error) {
		return c.client.Issue.UpdateIssueWithContext(ctx, key, data)
	})
	if err != nil {
		logging.Error("error saving jira issue", "key", key, "error", err)
		return fmt.Errorf("failed to update JIRA issue %s: %w", key, err)
	}
	return nil
}

// PostComment adds a comment to an issue.
func (c *Client) PostComment(ctx context.Context, project string, number int, text string) error {
	key, err := issueKey(project, number)
	if err != nil {
		return err
	}
	err = c.withRetry(ctx, func() (*jira.Response, error) {
		_, resp, err := c.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: text})
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to comment on JIRA issue %s: %w", key, err)
	}
	return nil
}

// CloseIssue applies the first available transition into the "done" status
// category.
func (c *Client) CloseIssue(ctx context.Context, project string, number int) error {
	key, err := issueKey(project, number)
	if err != nil {
		return err
	}

	var transitions []jira.Transition
	err = c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		transitions, resp, err = c.client.Issue.GetTransitionsWithContext(ctx, key)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to list transitions for JIRA issue %s: %w", key, err)
	}

	var target *jira.Transition
	for i := range transitions {
		if transitions[i].To.StatusCategory.Key == statusCategoryDone {
			target = &transitions[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("JIRA issue %s has no transition to a done status", key)
	}

	logging.Debug("closing jira issue", "key", key, "transition", target.Name)
	err = c.withRetry(ctx, func() (*jira.Response, error) {
		return c.client.Issue.DoTransitionWithContext(ctx, key, target.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to close JIRA issue %s: %w", key, err)
	}
	return nil
}

// CurrentUser returns the authenticated user's name. Jira Cloud has no user
// names, so the e-mail address or display name is used there.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	if c.user != "" {
		return c.user, nil
	}
	var self *jira.User
	err := c.withRetry(ctx, func() (*jira.Response, error) {
		var resp *jira.Response
		var err error
		self, resp, err = c.client.User.GetSelfWithContext(ctx)
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get JIRA user: %w", err)
	}
	for _, name := range []string{self.Name, self.EmailAddress, self.DisplayName} {
		if name = strings.TrimSpace(name); name != "" {
			c.user = name
			return name, nil
		}
	}
	return "", errors.New("JIRA user has no name")
}

func (c *Client) withRetry(ctx context.Context, op func() (*jira.Response, error)) error {
	return backoff.Retry(func() error {
		resp, err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if resp == nil || resp.Response == nil ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= http.StatusInternalServerError {
			logging.Debug("retrying jira request", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(c.newBackOff(), ctx))
}
