// Package report hands verification results to reporting sinks as named
// pass/fail outcomes.
package report

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/cgast/idemverify/pkg/verify"
)

// Outcome is one named pass/fail result with its message.
type Outcome struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Outcomes converts every result of r to an outcome, in declaration order.
// Failures carry the one-line detail as their message.
func Outcomes(r verify.Report) []Outcome {
	out := make([]Outcome, 0, len(r.Results))
	for _, res := range r.Results {
		o := Outcome{Name: res.Name(), Passed: res.Passed()}
		if !o.Passed {
			o.Message = res.Detail()
		}
		out = append(out, o)
	}
	return out
}

// Options select and order outcomes for presentation.
type Options struct {
	// Filter keeps outcomes whose name contains it, or matches it when
	// written as /regexp/. Empty keeps everything.
	Filter string
	// Seed shuffles the outcomes deterministically. Zero keeps declaration
	// order.
	Seed uint64
}

// Select applies opts to outcomes. The input slice is not modified.
func Select(outcomes []Outcome, opts Options) ([]Outcome, error) {
	match, err := nameMatcher(opts.Filter)
	if err != nil {
		return nil, err
	}

	out := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if match(o.Name) {
			out = append(out, o)
		}
	}

	if opts.Seed != 0 {
		r := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out, nil
}

func nameMatcher(filter string) (func(string) bool, error) {
	switch {
	case filter == "":
		return func(string) bool { return true }, nil
	case len(filter) > 1 && strings.HasPrefix(filter, "/") && strings.HasSuffix(filter, "/"):
		re, err := regexp.Compile(filter[1 : len(filter)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid filter %s: %w", filter, err)
		}
		return re.MatchString, nil
	default:
		return func(name string) bool { return strings.Contains(name, filter) }, nil
	}
}

// Batch is what a sink receives: the full report plus the selected
// outcomes in presentation order.
type Batch struct {
	Report   verify.Report
	Outcomes []Outcome
	Seed     uint64
}

// Failed returns the number of failing outcomes in the batch.
func (b Batch) Failed() int {
	n := 0
	for _, o := range b.Outcomes {
		if !o.Passed {
			n++
		}
	}
	return n
}

// Sink accepts a batch of outcomes.
type Sink interface {
	Name() string
	Publish(ctx context.Context, b Batch) error
}

// Publish sends b to every sink. A failing sink does not stop the others;
// their errors are joined.
func Publish(ctx context.Context, b Batch, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
