package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/pkg/events"
	"github.com/cgast/idemverify/pkg/report"
	"github.com/cgast/idemverify/pkg/runner"
	"github.com/cgast/idemverify/pkg/spec"
	"github.com/cgast/idemverify/pkg/store"
	"github.com/cgast/idemverify/pkg/verify"
)

type verifyOptions struct {
	Facts       []string
	Recorded    bool
	Params      []string
	Filter      string
	Verbose     bool
	Seed        uint64
	Parallelism int
	Timeout     time.Duration
	RunFailed   bool
	RunReason   string
	GitHub      bool
	Webhook     bool
	NoHistory   bool

	filterSet bool
	seedSet   bool
}

func newVerifyCommand(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <spec>...",
		Short: "Verify declared resources against their actual state",
		Long: `Verify loads one or more verification specs (files, directories or
globs such as ./test/*.yaml), inspects every declared resource and reports
one outcome per expected attribute.

Exit status is 0 when every expectation is met and 1 when any is not.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Facts, "facts", nil, "facts file recorded by the convergence run (repeatable)")
	cmd.Flags().BoolVar(&opts.Recorded, "recorded", false, "resolve from facts imported into the store")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "spec parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only report outcomes containing this text, or matching /regexp/")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print passing outcomes too")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "shuffle outcome order with this seed (0 keeps declaration order)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "concurrent inspections")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "limit for each resource inspection")
	cmd.Flags().BoolVar(&opts.RunFailed, "run-failed", false, "the convergence run failed, skip verification")
	cmd.Flags().StringVar(&opts.RunReason, "run-reason", "", "why the convergence run failed")
	cmd.Flags().BoolVar(&opts.GitHub, "github", false, "open a GitHub issue when verification fails")
	cmd.Flags().BoolVar(&opts.Webhook, "webhook", false, "post the report to the configured webhook")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not archive the report")
	cmd.MarkFlagsMutuallyExclusive("facts", "recorded")

	return cmd
}

func runVerify(cmd *cobra.Command, root *rootOptions, opts *verifyOptions, args []string) error {
	if cmd.Flags().Changed("filter") {
		opts.filterSet = true
	}
	if cmd.Flags().Changed("seed") {
		opts.seedSet = true
	}

	res, err := executeVerify(cmd.Context(), root, *opts, args, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	switch res.Status {
	case runner.StatusSkipped:
		fmt.Fprintln(cmd.ErrOrStderr(), "convergence run failed, verification skipped")
	case runner.StatusFailed:
		_, failed := res.Report.Counts()
		return newExitError(ExitFailure, fmt.Sprintf("verification failed: %d of %d expectations not met", failed, len(res.Report.Results)))
	}
	return nil
}

// executeVerify runs one verification of the specs matched by patterns.
// Outcomes are printed to out unless it is nil. A failing report is a
// result, not an error; errors carry their exit code.
func executeVerify(ctx context.Context, root *rootOptions, opts verifyOptions, patterns []string, out io.Writer) (runner.Result, error) {
	cfg := root.cfg
	logger := root.logger
	if opts.filterSet {
		cfg.Report.Filter = opts.Filter
	}
	if opts.seedSet {
		cfg.Report.Seed = opts.Seed
	}
	if opts.Parallelism > 0 {
		cfg.Verify.Parallelism = opts.Parallelism
	}
	if opts.Timeout > 0 {
		cfg.Verify.Timeout = opts.Timeout
	}

	params, err := spec.ParseParams(opts.Params)
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "parse params", err)
	}
	docs, err := spec.LoadSpecs(afero.NewOsFs(), patterns, params)
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "load spec", err)
	}

	bus := events.NewMemoryBus()
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		bus.Publish(events.NewEvent(events.EventSpecLoaded, map[string]any{
			"path":      d.Path,
			"name":      d.Spec.Meta.Name,
			"resources": len(d.Spec.Resources),
		}))
		vr := spec.ValidateSpec(d.Spec)
		for _, w := range vr.Warnings {
			logger.Warn("spec warning", "path", d.Path, "field", w.Field, "message", w.Message)
		}
		if !vr.Valid() {
			return runner.Result{}, wrapExitError(ExitCommandError, "invalid spec "+d.Path, vr)
		}
		names = append(names, d.Spec.Meta.Name)
	}
	exps, err := spec.PlanAll(docs)
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "plan", err)
	}

	var st *store.BoltStore
	if !opts.NoHistory || opts.Recorded {
		st, err = openStore(cfg.Store.Path)
		if err != nil {
			return runner.Result{}, wrapExitError(ExitCommandError, "store", err)
		}
		defer st.Close()
	}

	var facts *factSource
	switch {
	case len(opts.Facts) > 0 && opts.Recorded:
		err = fmt.Errorf("facts files and recorded facts are mutually exclusive")
	case len(opts.Facts) > 0:
		facts, err = loadFactFiles(opts.Facts)
	case opts.Recorded:
		facts, err = recordedFacts(st)
	}
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "load facts", err)
	}

	inspector, err := buildInspector(cfg, facts, logger)
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "inspector", err)
	}

	sinks, err := buildSinks(out, cfg, root.platforms, st, sinkOptions{
		Verbose: opts.Verbose,
		GitHub:  opts.GitHub,
		Webhook: opts.Webhook,
		History: !opts.NoHistory,
	})
	if err != nil {
		return runner.Result{}, wrapExitError(ExitCommandError, "sinks", err)
	}

	engine := verify.NewEngine(inspector,
		verify.WithParallelism(cfg.Verify.Parallelism),
		verify.WithTimeout(cfg.Verify.Timeout),
		verify.WithEvents(bus),
		verify.WithLogger(logger),
		verify.WithName(strings.Join(names, ", ")),
	)
	r := &runner.Runner{
		Verifier:   engine,
		Sinks:      sinks,
		Options:    report.Options{Filter: cfg.Report.Filter, Seed: cfg.Report.Seed},
		FailOnSkip: cfg.Verify.FailOnSkip,
		Events:     bus,
		Logger:     logger,
	}

	res, err := r.Run(ctx, runner.RunStatus{Failed: opts.RunFailed, Reason: opts.RunReason}, exps)
	switch {
	case errors.Is(err, runner.ErrRunFailed):
		return res, wrapExitError(ExitFailure, "verification skipped", err)
	case err != nil && res.Status == "":
		return res, wrapExitError(ExitCommandError, "verification", err)
	case err != nil:
		return res, wrapExitError(ExitCommandError, "report", err)
	}

	if st != nil && cfg.Store.Keep > 0 && !opts.NoHistory && res.Status != runner.StatusSkipped {
		if n, err := st.Prune(cfg.Store.Keep); err != nil {
			logger.Warn("pruning history failed", "error", err)
		} else if n > 0 {
			logger.Debug("pruned history", "removed", n)
		}
	}
	logger.Debug("run events",
		"specs", bus.Count(events.EventSpecLoaded),
		"inspected", bus.Count(events.EventInspectEnd),
		"inspection_errors", bus.Count(events.EventInspectError))
	return res, nil
}
