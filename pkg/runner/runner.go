// Package runner drives one post-run verification: it decides whether the
// pass runs at all, verifies, and hands the outcomes to the configured
// sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cgast/idemverify/pkg/events"
	"github.com/cgast/idemverify/pkg/report"
	"github.com/cgast/idemverify/pkg/verify"
)

// ErrRunFailed is returned when verification was skipped because the
// convergence run failed and skips are configured to be errors.
var ErrRunFailed = errors.New("convergence run failed")

// Verifier runs one verification pass. *verify.Engine implements it.
type Verifier interface {
	Verify(ctx context.Context, exps []verify.Expectation) (verify.Report, error)
}

// RunStatus describes the convergence run being verified.
type RunStatus struct {
	Failed bool
	Reason string
}

// Status is the overall state of a runner pass.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result holds what a runner pass produced. Report and Outcomes are empty
// when the pass was skipped.
type Result struct {
	Status   Status
	Report   verify.Report
	Outcomes []report.Outcome
}

// Runner connects a Verifier to reporting sinks.
type Runner struct {
	Verifier   Verifier
	Sinks      []report.Sink
	Options    report.Options
	FailOnSkip bool
	Events     events.EventBus
	Logger     *slog.Logger
}

// Run verifies exps unless status says the convergence run failed. A skipped
// pass is never reported as a pass. Sink failures are returned together with
// the result; the verification outcome itself is still valid.
func (r *Runner) Run(ctx context.Context, status RunStatus, exps []verify.Expectation) (Result, error) {
	if r.Verifier == nil {
		return Result{}, fmt.Errorf("runner: no verifier configured")
	}
	logger := r.logger()

	if status.Failed {
		r.publish(events.NewEvent(events.EventRunSkipped, map[string]any{
			"reason": status.Reason,
		}))
		logger.Warn("convergence run failed, verification skipped", "reason", status.Reason)
		res := Result{Status: StatusSkipped}
		if r.FailOnSkip {
			if status.Reason != "" {
				return res, fmt.Errorf("%w: %s", ErrRunFailed, status.Reason)
			}
			return res, ErrRunFailed
		}
		return res, nil
	}

	rep, err := r.Verifier.Verify(ctx, exps)
	if err != nil {
		return Result{}, fmt.Errorf("verify: %w", err)
	}

	selected, err := report.Select(report.Outcomes(rep), r.Options)
	if err != nil {
		return Result{}, err
	}

	res := Result{Status: StatusPassed, Report: rep, Outcomes: selected}
	if !rep.Passed() {
		res.Status = StatusFailed
	}

	batch := report.Batch{Report: rep, Outcomes: selected, Seed: r.Options.Seed}
	pubErr := report.Publish(ctx, batch, r.Sinks...)

	names := make([]string, len(r.Sinks))
	for i, s := range r.Sinks {
		names[i] = s.Name()
	}
	r.publish(events.NewEvent(events.EventReportPublished, map[string]any{
		"id":       rep.ID,
		"sinks":    names,
		"outcomes": len(selected),
	}))
	if pubErr != nil {
		logger.Error("publishing report failed", "id", rep.ID, "error", pubErr)
		return res, fmt.Errorf("publish report: %w", pubErr)
	}
	logger.Debug("report published", "id", rep.ID, "sinks", names)
	return res, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) publish(ev events.Event) {
	if r.Events != nil {
		r.Events.Publish(ev)
	}
}
