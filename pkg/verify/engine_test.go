package verify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/idemverify/internal/logging"
	"github.com/cgast/idemverify/pkg/events"
	"github.com/cgast/idemverify/pkg/resource"
)

// fakeInspector serves states by ref, optionally after a delay.
type fakeInspector struct {
	states   map[string]resource.State
	errs     map[string]error
	delay    map[string]time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeInspector) Inspect(ctx context.Context, ref resource.Ref) (resource.State, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if d := f.delay[ref.String()]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, &resource.Error{Code: resource.ErrInspectionFailure, Ref: ref, Err: ctx.Err()}
		}
	}
	if err := f.errs[ref.String()]; err != nil {
		return nil, err
	}
	state, ok := f.states[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%s does not exist", ref)
	}
	return state, nil
}

func TestEngineEndToEnd(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		outcome Outcome
		failed  int
	}{
		{"action differs", "delete", Fail, 1},
		{"all match", "create", Pass, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insp := &fakeInspector{states: map[string]resource.State{
				"file[/etc/foo]": {
					"name":   resource.String("/etc/foo"),
					"action": resource.String(tt.action),
					"backup": resource.Int(5),
				},
			}}

			report, err := NewEngine(insp, WithLogger(logging.Discard())).Verify(context.Background(), []Expectation{etcFooExpectation()})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, report.Outcome)
			assert.Len(t, report.Failures, tt.failed)
			assert.Len(t, report.Results, 3)
			assert.NotEmpty(t, report.ID)
			if tt.failed == 1 {
				assert.Equal(t, "action", report.Failures[0].Attribute)
				assert.Equal(t, resource.String("delete"), report.Failures[0].Actual)
			}
		})
	}
}

func TestEngineOrderIsDeclarationOrder(t *testing.T) {
	insp := &fakeInspector{
		states: map[string]resource.State{},
		delay:  map[string]time.Duration{},
	}
	var exps []Expectation
	for i := 0; i < 8; i++ {
		ref := resource.NewRef(resource.KindFile, fmt.Sprintf("/srv/%d", i), nil)
		insp.states[ref.String()] = resource.State{"mode": resource.String("0644")}
		// Earlier declarations finish later.
		insp.delay[ref.String()] = time.Duration(8-i) * 5 * time.Millisecond
		exps = append(exps, Expect(ref).With("mode", "0644").With("owner", "root"))
	}

	report, err := NewEngine(insp, WithParallelism(8), WithLogger(logging.Discard())).Verify(context.Background(), exps)
	require.NoError(t, err)
	require.Len(t, report.Results, 16)
	for i := 0; i < 8; i++ {
		assert.Equal(t, fmt.Sprintf("/srv/%d", i), report.Results[2*i].Ref.Name)
		assert.Equal(t, "mode", report.Results[2*i].Attribute)
		assert.Equal(t, "owner", report.Results[2*i+1].Attribute)
	}
	assert.Len(t, report.Failures, 8)
}

func TestEngineParallelismLimit(t *testing.T) {
	insp := &fakeInspector{states: map[string]resource.State{}, delay: map[string]time.Duration{}}
	var exps []Expectation
	for i := 0; i < 6; i++ {
		ref := resource.NewRef(resource.KindUser, fmt.Sprintf("u%d", i), nil)
		insp.states[ref.String()] = resource.State{"shell": resource.String("/bin/sh")}
		insp.delay[ref.String()] = 10 * time.Millisecond
		exps = append(exps, Expect(ref).With("shell", "/bin/sh"))
	}

	report, err := NewEngine(insp, WithParallelism(2), WithLogger(logging.Discard())).Verify(context.Background(), exps)
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.LessOrEqual(t, insp.peak.Load(), int32(2))
}

func TestEngineInspectionErrorDoesNotAbort(t *testing.T) {
	missing := resource.NewRef(resource.KindFile, "/etc/missing", nil)
	mount := resource.NewRef(resource.KindMount, "/data", nil)
	insp := &fakeInspector{
		states: map[string]resource.State{"file[/etc/foo]": {"mode": resource.String("0644")}},
		errs: map[string]error{
			"mount[/data]": &resource.Error{Code: resource.ErrMissingArgument, Ref: mount, Attribute: "device"},
		},
	}
	exps := []Expectation{
		Expect(missing).With("mode", "0600").With("owner", "root"),
		Expect(mount).With("mounted", true),
		Expect(etcFoo).With("mode", "0644"),
	}

	bus := events.NewMemoryBus()
	report, err := NewEngine(insp, WithEvents(bus), WithLogger(logging.Discard())).Verify(context.Background(), exps)
	require.NoError(t, err)
	require.Len(t, report.Results, 3, "a failed inspection yields one result for the resource")

	assert.Equal(t, resource.ErrInspectionFailure, report.Results[0].Code)
	assert.Contains(t, report.Results[0].Cause, "does not exist")
	assert.Equal(t, "mode", report.Results[0].Attribute)

	assert.Equal(t, resource.ErrMissingArgument, report.Results[1].Code)
	assert.Equal(t, "mounted", report.Results[1].Attribute)

	assert.True(t, report.Results[2].Passed())
	assert.Equal(t, Fail, report.Outcome)

	assert.Equal(t, 1, bus.Count(events.EventVerifyStart))
	assert.Equal(t, 3, bus.Count(events.EventInspectStart))
	assert.Equal(t, 2, bus.Count(events.EventInspectError))
	assert.Equal(t, 1, bus.Count(events.EventInspectEnd))
	assert.Equal(t, 1, bus.Count(events.EventVerifyResult))
}

func TestEngineTimeoutIsInspectionFailure(t *testing.T) {
	slow := resource.NewRef(resource.KindService, "nginx", nil)
	insp := &fakeInspector{
		states: map[string]resource.State{"service[nginx]": {"running": resource.String("true")}},
		delay:  map[string]time.Duration{"service[nginx]": time.Second},
	}

	report, err := NewEngine(insp, WithTimeout(10*time.Millisecond), WithLogger(logging.Discard())).
		Verify(context.Background(), []Expectation{Expect(slow).With("running", true)})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, resource.ErrInspectionFailure, report.Failures[0].Code)
	assert.Contains(t, report.Failures[0].Cause, context.DeadlineExceeded.Error())
}

func TestEngineNoExpectations(t *testing.T) {
	engine := NewEngine(&fakeInspector{}, WithLogger(logging.Discard()))

	_, err := engine.Verify(context.Background(), nil)
	assert.True(t, errors.Is(err, resource.ErrNoExpectations))

	_, err = engine.Verify(context.Background(), []Expectation{Expect(etcFoo)})
	assert.True(t, errors.Is(err, resource.ErrNoExpectations))
}

func TestEngineNamesReport(t *testing.T) {
	insp := &fakeInspector{states: map[string]resource.State{"file[/etc/foo]": {"mode": resource.String("0644")}}}
	report, err := NewEngine(insp, WithName("web"), WithLogger(logging.Discard())).
		Verify(context.Background(), []Expectation{Expect(etcFoo).With("mode", "0644")})
	require.NoError(t, err)
	assert.Equal(t, "web", report.Name)
	assert.False(t, report.StartedAt.IsZero())
}
