package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/idemverify/pkg/events"
	"github.com/cgast/idemverify/pkg/resource"
)

// Inspector returns the normalized actual state of a resource.
// *inspect.Inspector implements it.
type Inspector interface {
	Inspect(ctx context.Context, ref resource.Ref) (resource.State, error)
}

// DefaultParallelism is the number of concurrent inspections when none is
// configured.
const DefaultParallelism = 4

// Option configures the Engine.
type Option func(*Engine)

// WithParallelism bounds concurrent inspections. 1 inspects sequentially.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithTimeout limits each inspection. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithEvents publishes progress events to bus.
func WithEvents(bus events.EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithName labels the reports the engine produces.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// Engine runs one verification pass: inspect every declared resource,
// match, aggregate.
type Engine struct {
	inspector   Inspector
	parallelism int
	timeout     time.Duration
	bus         events.EventBus
	logger      *slog.Logger
	name        string
	now         func() time.Time
}

// NewEngine creates a new verification engine with the given options.
func NewEngine(inspector Inspector, opts ...Option) *Engine {
	e := &Engine{
		inspector:   inspector,
		parallelism: DefaultParallelism,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify inspects the resource of every expectation, matches it, and
// aggregates the results in declaration order. A resource that cannot be
// inspected contributes one failing result; it never aborts the pass.
func (e *Engine) Verify(ctx context.Context, exps []Expectation) (Report, error) {
	total := 0
	for _, exp := range exps {
		total += exp.Len()
	}
	if total == 0 {
		return Report{}, fmt.Errorf("%w: no expected attributes declared", resource.ErrNoExpectations)
	}

	started := e.now()
	e.publish(events.NewEvent(events.EventVerifyStart, map[string]int{
		"resources":    len(exps),
		"expectations": total,
	}))
	e.logger.Debug("verification started", "resources", len(exps), "expectations", total, "parallelism", e.parallelism)

	// One slot per expectation keeps the report in declaration order
	// whatever order the inspections finish in.
	slots := make([][]MatchResult, len(exps))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, exp := range exps {
		if exp.Len() == 0 {
			continue
		}
		g.Go(func() error {
			slots[i] = e.verifyOne(ctx, exp)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]MatchResult, 0, total)
	for _, s := range slots {
		results = append(results, s...)
	}

	report, err := Aggregate(results)
	if err != nil {
		return Report{}, err
	}
	report.ID = uuid.NewString()
	report.Name = e.name
	report.StartedAt = started
	report.Duration = e.now().Sub(started)

	passed, failed := report.Counts()
	ev := events.NewEvent(events.EventVerifyResult, map[string]any{
		"id":      report.ID,
		"outcome": report.Outcome,
		"passed":  passed,
		"failed":  failed,
	})
	ev.Duration = report.Duration
	e.publish(ev)
	e.logger.Info("verification finished", "outcome", report.Outcome, "passed", passed, "failed", failed, "duration", report.Duration)

	return report, nil
}

func (e *Engine) verifyOne(ctx context.Context, exp Expectation) []MatchResult {
	ref := exp.Ref.String()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := e.now()
	e.publish(events.NewRefEvent(events.EventInspectStart, ref, exp.Attributes()))

	state, err := e.inspector.Inspect(ctx, exp.Ref)
	elapsed := e.now().Sub(start)
	if err != nil {
		var re *resource.Error
		if !errors.As(err, &re) {
			err = &resource.Error{Code: resource.ErrInspectionFailure, Ref: exp.Ref, Err: err}
		}
		ev := events.NewRefEvent(events.EventInspectError, ref, err.Error())
		ev.Duration = elapsed
		e.publish(ev)
		e.logger.Warn("inspection failed", "ref", ref, "code", resource.CodeOf(err), "error", err)
		return inspectionFailed(exp, err)
	}

	results := Match(state, exp)
	ev := events.NewRefEvent(events.EventInspectEnd, ref, len(results))
	ev.Duration = elapsed
	e.publish(ev)
	for _, r := range results {
		e.logger.Debug("matched", "ref", ref, "attribute", r.Attribute, "outcome", r.Outcome)
	}
	return results
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
