package report

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// GitHubIssueSink opens an issue listing the failures of a batch. Passing
// batches publish nothing.
type GitHubIssueSink struct {
	client *gh.Client
	owner  string
	repo   string
	labels []string
}

// NewGitHubIssueSink creates a sink for repo in owner/name form.
func NewGitHubIssueSink(token, repo string, labels []string) (*GitHubIssueSink, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}
	return &GitHubIssueSink{
		client: gh.NewClient(httpClient),
		owner:  owner,
		repo:   name,
		labels: labels,
	}, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

func (s *GitHubIssueSink) Name() string { return "github" }

func (s *GitHubIssueSink) Publish(ctx context.Context, b Batch) error {
	failed := b.Failed()
	if failed == 0 {
		return nil
	}

	title := issueTitle(b, failed)
	body := issueBody(b)
	req := &gh.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	if len(s.labels) > 0 {
		labels := append([]string(nil), s.labels...)
		req.Labels = &labels
	}

	if _, _, err := s.client.Issues.Create(ctx, s.owner, s.repo, req); err != nil {
		return fmt.Errorf("create issue in %s/%s: %w", s.owner, s.repo, err)
	}
	return nil
}

func issueTitle(b Batch, failed int) string {
	name := b.Report.Name
	if name == "" {
		name = "verification"
	}
	noun := "expectations"
	if failed == 1 {
		noun = "expectation"
	}
	return fmt.Sprintf("%s: %d %s not met", name, failed, noun)
}

func issueBody(b Batch) string {
	var sb strings.Builder
	if b.Report.ID != "" {
		fmt.Fprintf(&sb, "Report `%s`\n\n", b.Report.ID)
	}
	sb.WriteString("| Outcome | Result |\n|---|---|\n")
	for _, o := range b.Outcomes {
		result := "pass"
		if !o.Passed {
			result = "**fail**"
		}
		fmt.Fprintf(&sb, "| `%s` | %s |\n", o.Name, result)
	}
	for _, o := range b.Outcomes {
		if !o.Passed {
			fmt.Fprintf(&sb, "\n- %s", o.Message)
		}
	}
	sb.WriteString("\n")
	return sb.String()
}
