package verify

import (
	"fmt"
	"time"

	"github.com/cgast/idemverify/pkg/resource"
)

// Report is the aggregate outcome of one verification pass.
type Report struct {
	ID        string        `json:"id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Results   []MatchResult `json:"results"`
	Failures  []MatchResult `json:"failures"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Aggregate folds results into a Report. The report fails iff any result
// failed; Failures keeps declaration order. No results is an error, never
// a pass.
func Aggregate(results []MatchResult) (Report, error) {
	if len(results) == 0 {
		return Report{}, fmt.Errorf("%w: nothing was verified", resource.ErrNoExpectations)
	}

	r := Report{
		Outcome:  Pass,
		Results:  make([]MatchResult, len(results)),
		Failures: []MatchResult{},
	}
	copy(r.Results, results)
	for _, res := range results {
		if !res.Passed() {
			r.Outcome = Fail
			r.Failures = append(r.Failures, res)
		}
	}
	return r, nil
}

// Passed reports whether every result passed.
func (r Report) Passed() bool { return r.Outcome == Pass }

// Counts returns the number of passed and failed results.
func (r Report) Counts() (passed, failed int) {
	return len(r.Results) - len(r.Failures), len(r.Failures)
}

// Summary is a one-line tally.
func (r Report) Summary() string {
	passed, failed := r.Counts()
	return fmt.Sprintf("%s: %d passed, %d failed, %d total", r.Outcome, passed, failed, len(r.Results))
}
