package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// TextSink prints outcomes in the style of a unit test runner: a progress
// line (or one line per outcome when Verbose), then numbered failures and a
// tally.
type TextSink struct {
	W       io.Writer
	Verbose bool
}

func (s *TextSink) Name() string { return "text" }

func (s *TextSink) Publish(_ context.Context, b Batch) error {
	w := &errWriter{w: s.W}

	if b.Seed != 0 {
		w.printf("Run options: --seed %d\n\n", b.Seed)
	}
	if b.Report.Name != "" {
		w.printf("# %s\n\n", b.Report.Name)
	}

	if s.Verbose {
		for _, o := range b.Outcomes {
			status := "PASS"
			if !o.Passed {
				status = "FAIL"
			}
			w.printf("%s %s\n", status, o.Name)
		}
	} else {
		for _, o := range b.Outcomes {
			if o.Passed {
				w.printf(".")
			} else {
				w.printf("F")
			}
		}
		w.printf("\n")
	}

	failures := 0
	for _, o := range b.Outcomes {
		if o.Passed {
			continue
		}
		failures++
		if failures == 1 {
			w.printf("\nFailures:\n")
		}
		w.printf("\n  %d) %s\n     %s\n", failures, o.Name, o.Message)
	}

	w.printf("\n%d outcomes, %d passed, %d failed\n", len(b.Outcomes), len(b.Outcomes)-failures, failures)
	return w.err
}

// errWriter keeps the first write error so rendering code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

// JSONSink writes the batch as one JSON document.
type JSONSink struct {
	W      io.Writer
	Indent bool
}

type jsonBatch struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Outcome  string    `json:"outcome"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
	Seed     uint64    `json:"seed,omitempty"`
	Outcomes []Outcome `json:"outcomes"`
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Publish(_ context.Context, b Batch) error {
	failed := b.Failed()
	outcome := "pass"
	if failed > 0 {
		outcome = "fail"
	}
	doc := jsonBatch{
		ID:       b.Report.ID,
		Name:     b.Report.Name,
		Outcome:  outcome,
		Passed:   len(b.Outcomes) - failed,
		Failed:   failed,
		Seed:     b.Seed,
		Outcomes: b.Outcomes,
	}
	if doc.Outcomes == nil {
		doc.Outcomes = []Outcome{}
	}

	enc := json.NewEncoder(s.W)
	if s.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
