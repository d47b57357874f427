// Package github provides the GitHub Issues backend for the workflow.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/danielolaszy/ghflow/internal/config"
	"github.com/danielolaszy/ghflow/internal/logging"
	"github.com/danielolaszy/ghflow/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

const (
	// retryMaxElapsed bounds the total time spent retrying one API call.
	retryMaxElapsed = 30 * time.Second

	// maxRateLimitWait is the longest we sleep for a rate limit reset before
	// giving up on the call.
	maxRateLimitWait = 60 * time.Second

	// maxRateLimitWaits bounds how many rate limit resets one call waits out.
	maxRateLimitWaits = 3

	// labelColor is used for labels created by EnsureLabels.
	labelColor = "ededed"
)

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client

	user       string
	maxWait    time.Duration
	newBackOff func() backoff.BackOff
}

func newRetryBackOff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// APIURL returns the REST endpoint for a GitHub domain. github.com uses the
// public API host; any other domain is treated as GitHub Enterprise.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates an authenticated GitHub client and checks the token by
// resolving the authenticated user.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := config.ValidateGitHubConfig(cfg); err != nil {
		return nil, err
	}

	apiURL := APIURL(cfg.GitHub.Domain)
	logging.Info("github configuration",
		"domain", cfg.GitHub.Domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.GitHub.Token))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHub.Token})
	c, err := newClient(oauth2.NewClient(ctx, ts), apiURL)
	if err != nil {
		return nil, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	user, err := c.CurrentUser(checkCtx)
	if err != nil {
		return nil, fmt.Errorf("error testing github token: %w", err)
	}
	logging.Info("github authentication successful", "username", user)
	return c, nil
}

// newClient builds a Client on top of httpClient talking to baseURL.
func newClient(httpClient *http.Client, baseURL string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	gh := github.NewClient(httpClient)
	gh.BaseURL = parsed
	gh.UploadURL = parsed
	return &Client{
		client:     gh,
		maxWait:    maxRateLimitWait,
		newBackOff: newRetryBackOff,
	}, nil
}

// splitRepo parses "owner/repo".
func splitRepo(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// FetchIssue retrieves a single issue. Pull requests are rejected.
func (c *Client) FetchIssue(ctx context.Context, repository string, number int) (*models.Issue, error) {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return nil, err
	}

	var issue *github.Issue
	err = c.withRetry(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		issue, resp, err = c.client.Issues.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		logging.Error("failed to get github issue", "repository", repository, "issue_number", number, "error", err)
		return nil, fmt.Errorf("failed to get GitHub issue %s#%d: %w", repository, number, err)
	}
	if issue.IsPullRequest() {
		return nil, fmt.Errorf("%s#%d is a pull request, not an issue", repository, number)
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}
	return &models.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
		Labels: labels,
	}, nil
}

// SaveIssue replaces the body and the full label set of an issue in one request.
func (c *Client) SaveIssue(ctx context.Context, repository string, number int, body string, labels []string) error {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return err
	}

	labels = append([]string{}, labels...)
	req := &github.IssueRequest{Body: &body, Labels: &labels}
	logging.Debug("saving issue", "repository", repository, "issue_number", number, "labels", labels, "body_length", len(body))

	err = c.withRetry(ctx, func() (*github.Response, error) {
		_, resp, err := c.client.Issues.Edit(ctx, owner, repo, number, req)
		return resp, err
	})
	if err != nil {
		logging.Error("error saving issue", "repository", repository, "issue_number", number, "error", err)
		return fmt.Errorf("failed to update issue %s#%d: %w", repository, number, err)
	}
	return nil
}

// PostComment adds a comment to an issue.
func (c *Client) PostComment(ctx context.Context, repository string, number int, text string) error {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return err
	}

	comment := &github.IssueComment{Body: &text}
	err = c.withRetry(ctx, func() (*github.Response, error) {
		_, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, number, comment)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to comment on issue %s#%d: %w", repository, number, err)
	}
	logging.Debug("posted comment", "repository", repository, "issue_number", number)
	return nil
}

// CloseIssue sets the issue state to closed.
func (c *Client) CloseIssue(ctx context.Context, repository string, number int) error {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return err
	}

	state := models.StateClosed
	req := &github.IssueRequest{State: &state}
	err = c.withRetry(ctx, func() (*github.Response, error) {
		_, resp, err := c.client.Issues.Edit(ctx, owner, repo, number, req)
		return resp, err
	})
	if err != nil {
		return fmt.Errorf("failed to close issue %s#%d: %w", repository, number, err)
	}
	return nil
}

// CurrentUser returns the login of the authenticated user. The result is cached.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	if c.user != "" {
		return c.user, nil
	}
	var user *github.User
	err := c.withRetry(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		user, resp, err = c.client.Users.Get(ctx, "")
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}
	if user.GetLogin() == "" {
		return "", errors.New("authenticated user has no login")
	}
	c.user = user.GetLogin()
	return c.user, nil
}

// EnsureLabels creates the labels that do not exist yet in the repository and
// returns how many were created.
func (c *Client) EnsureLabels(ctx context.Context, repository string, labels []string) (int, error) {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, name := range labels {
		var status int
		err := c.withRetry(ctx, func() (*github.Response, error) {
			_, resp, err := c.client.Issues.GetLabel(ctx, owner, repo, name)
			if resp != nil {
				status = resp.StatusCode
			}
			return resp, err
		})
		if err == nil {
			logging.Debug("label exists", "repository", repository, "label", name)
			continue
		}
		if status != http.StatusNotFound {
			return created, fmt.Errorf("failed to look up label %q: %w", name, err)
		}

		label := &github.Label{Name: github.String(name), Color: github.String(labelColor)}
		err = c.withRetry(ctx, func() (*github.Response, error) {
			_, resp, err := c.client.Issues.CreateLabel(ctx, owner, repo, label)
			return resp, err
		})
		if err != nil {
			return created, fmt.Errorf("failed to create label %q: %w", name, err)
		}
		logging.Info("created label", "repository", repository, "label", name)
		created++
	}
	return created, nil
}

// withRetry runs op with exponential backoff. Network errors and 5xx responses
// are retried. A rate limit is waited out when it lifts within maxWait, and
// the retry budget starts over after the wait. Anything else fails immediately.
func (c *Client) withRetry(ctx context.Context, op func() (*github.Response, error)) error {
	b := backoff.WithContext(c.newBackOff(), ctx)
	waits := 0
	return backoff.Retry(func() error {
		resp, err := op()
		if err == nil {
			return nil
		}
		if wait, limited := rateLimitWait(err); limited {
			if wait > c.maxWait || waits >= maxRateLimitWaits {
				return backoff.Permanent(fmt.Errorf("rate limited for %s: %w", wait.Round(time.Second), err))
			}
			waits++
			logging.Warn("github rate limit hit, waiting", "wait", wait.Round(time.Second))
			if wait > 0 {
				select {
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				case <-time.After(wait):
				}
			}
			// The wait is not part of the retry budget.
			b.Reset()
			return err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if resp == nil || resp.StatusCode >= http.StatusInternalServerError {
			logging.Debug("retrying github request", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// rateLimitWait reports whether err is a rate limit and how long until it lifts.
func rateLimitWait(err error) (time.Duration, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return time.Until(rle.Rate.Reset.Time), true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return abuse.GetRetryAfter(), true
	}
	return 0, false
}
