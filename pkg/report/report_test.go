package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v60/github"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/idemverify/pkg/resource"
	"github.com/cgast/idemverify/pkg/verify"
)

var etcFoo = resource.NewRef(resource.KindFile, "/etc/foo", nil)

func webReport(t *testing.T, action string) verify.Report {
	t.Helper()
	exp := verify.Expect(etcFoo).With("action", "create").With("backup", 5).With("mode", "0644")
	results := verify.Match(resource.State{
		"action": resource.String(action),
		"backup": resource.Int(5),
		"mode":   resource.String("0644"),
	}, exp)
	r, err := verify.Aggregate(results)
	require.NoError(t, err)
	r.ID = "3f2a9c1e-0000-4000-8000-000000000001"
	r.Name = "web"
	return r
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestOutcomes(t *testing.T) {
	outcomes := Outcomes(webReport(t, "delete"))
	require.Len(t, outcomes, 3)

	assert.Equal(t, Outcome{Name: "file[/etc/foo] action", Passed: false,
		Message: `The file does not have the expected action: file[/etc/foo] expected "create", actual "delete"`}, outcomes[0])
	assert.Equal(t, Outcome{Name: "file[/etc/foo] backup", Passed: true}, outcomes[1])
	assert.Equal(t, "file[/etc/foo] mode", outcomes[2].Name)
}

func TestSelectFilter(t *testing.T) {
	outcomes := []Outcome{
		{Name: "file[/etc/foo] action"},
		{Name: "file[/etc/foo] mode"},
		{Name: "user[deploy] shell"},
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"file[/etc/foo] action", "file[/etc/foo] mode", "user[deploy] shell"}},
		{"file[/etc/foo]", []string{"file[/etc/foo] action", "file[/etc/foo] mode"}},
		{"/ (mode|shell)$/", []string{"file[/etc/foo] mode", "user[deploy] shell"}},
		{"package", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := Select(outcomes, Options{Filter: tt.filter})
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, o := range got {
				names = append(names, o.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := Select(outcomes, Options{Filter: "/([/"})
	assert.ErrorContains(t, err, "invalid filter")
}

func TestSelectSeed(t *testing.T) {
	var outcomes []Outcome
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		outcomes = append(outcomes, Outcome{Name: n, Passed: true})
	}
	original := append([]Outcome(nil), outcomes...)

	kept, err := Select(outcomes, Options{})
	require.NoError(t, err)
	assert.Equal(t, original, kept)

	first, err := Select(outcomes, Options{Seed: 42})
	require.NoError(t, err)
	second, err := Select(outcomes, Options{Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, first, second, "same seed must give the same order")
	assert.ElementsMatch(t, original, first)
	assert.Equal(t, original, outcomes, "input must not be reordered")
}

func TestTextSinkFailing(t *testing.T) {
	var buf bytes.Buffer
	r := webReport(t, "delete")
	err := (&TextSink{W: &buf}).Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)})
	require.NoError(t, err)

	newGolden(t).Assert(t, "text_failing", buf.Bytes())
}

func TestTextSinkVerboseSeeded(t *testing.T) {
	var buf bytes.Buffer
	r := webReport(t, "create")
	err := (&TextSink{W: &buf, Verbose: true}).Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r), Seed: 7})
	require.NoError(t, err)

	newGolden(t).Assert(t, "text_verbose_seeded", buf.Bytes())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextSinkWriteError(t *testing.T) {
	r := webReport(t, "create")
	err := (&TextSink{W: failingWriter{}}).Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)})
	assert.ErrorContains(t, err, "disk full")
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	r := webReport(t, "delete")
	require.NoError(t, (&JSONSink{W: &buf}).Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)}))

	var doc jsonBatch
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "fail", doc.Outcome)
	assert.Equal(t, "web", doc.Name)
	assert.Equal(t, 2, doc.Passed)
	assert.Equal(t, 1, doc.Failed)
	assert.Len(t, doc.Outcomes, 3)

	buf.Reset()
	require.NoError(t, (&JSONSink{W: &buf}).Publish(context.Background(), Batch{}))
	assert.Contains(t, buf.String(), `"outcomes":[]`)
	assert.Contains(t, buf.String(), `"outcome":"pass"`)
}

func TestWebhookSink(t *testing.T) {
	var got jsonBatch
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := webReport(t, "delete")
	sink := &WebhookSink{URL: srv.URL + "/hooks/verify", AllowedDomains: []string{"127.0.0.1"}, Client: srv.Client()}
	require.NoError(t, sink.Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)}))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, 1, got.Failed)
}

func TestWebhookSinkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := (&WebhookSink{URL: srv.URL, Client: srv.Client()}).Publish(context.Background(), Batch{})
	assert.ErrorContains(t, err, "unexpected status 401: bad token")

	err = (&WebhookSink{URL: "https://evil.example.com/x", AllowedDomains: []string{"hooks.example.com"}}).Publish(context.Background(), Batch{})
	assert.ErrorContains(t, err, "not in the allowed list")

	err = (&WebhookSink{URL: "file:///etc/passwd"}).Publish(context.Background(), Batch{})
	assert.ErrorContains(t, err, "scheme must be http or https")
}

func testGitHubSink(t *testing.T, handler http.HandlerFunc) *GitHubIssueSink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sink, err := NewGitHubIssueSink("secret", "acme/infra", []string{"idempotency"})
	require.NoError(t, err)
	sink.client.BaseURL, err = url.Parse(srv.URL + "/")
	require.NoError(t, err)
	return sink
}

func TestGitHubIssueSinkOpensIssueOnFailure(t *testing.T) {
	var req gh.IssueRequest
	var auth, path string
	sink := testGitHubSink(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 12}`))
	})

	r := webReport(t, "delete")
	require.NoError(t, sink.Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)}))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "/repos/acme/infra/issues", path)
	assert.Equal(t, "web: 1 expectation not met", req.GetTitle())
	assert.Contains(t, req.GetBody(), "| `file[/etc/foo] action` | **fail** |")
	assert.Contains(t, req.GetBody(), `expected "create", actual "delete"`)
	require.NotNil(t, req.Labels)
	assert.Equal(t, []string{"idempotency"}, *req.Labels)
}

func TestGitHubIssueSinkSkipsPassingBatch(t *testing.T) {
	called := false
	sink := testGitHubSink(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})

	r := webReport(t, "create")
	require.NoError(t, sink.Publish(context.Background(), Batch{Report: r, Outcomes: Outcomes(r)}))
	assert.False(t, called)
}

func TestNewGitHubIssueSinkValidation(t *testing.T) {
	_, err := NewGitHubIssueSink("", "acme/infra", nil)
	assert.ErrorContains(t, err, "token is required")

	for _, repo := range []string{"infra", "/infra", "acme/", "acme/infra/extra"} {
		_, err := NewGitHubIssueSink("secret", repo, nil)
		assert.ErrorContains(t, err, "invalid repository", repo)
	}
}

type memArchive struct{ saved []verify.Report }

func (m *memArchive) SaveReport(r verify.Report) error {
	m.saved = append(m.saved, r)
	return nil
}

type brokenSink struct{}

func (brokenSink) Name() string { return "broken" }
func (brokenSink) Publish(context.Context, Batch) error { return errors.New("offline") }

func TestPublishContinuesPastFailingSink(t *testing.T) {
	archive := &memArchive{}
	r := webReport(t, "delete")
	selected, err := Select(Outcomes(r), Options{Filter: "mode"})
	require.NoError(t, err)

	err = Publish(context.Background(), Batch{Report: r, Outcomes: selected}, brokenSink{}, &HistorySink{Store: archive})
	assert.ErrorContains(t, err, "broken sink: offline")

	require.Len(t, archive.saved, 1)
	assert.Len(t, archive.saved[0].Results, 3, "history keeps the full report")
}
