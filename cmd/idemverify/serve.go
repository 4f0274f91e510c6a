package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/pkg/protocol"
	"github.com/cgast/idemverify/pkg/report"
	"github.com/cgast/idemverify/pkg/runner"
	"github.com/cgast/idemverify/pkg/spec"
	"github.com/cgast/idemverify/pkg/store"
	"github.com/cgast/idemverify/pkg/verify"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-RPC 2.0 requests on stdin/stdout",
		Long: `Serve reads one JSON-RPC 2.0 request per line from stdin and writes one
response per line to stdout. Methods: verify, validate, kinds,
history.list, history.show, history.diff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := newRPCHandler(root)
			root.logger.Debug("serving", "methods", h.Methods())
			return h.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newRPCHandler(root *rootOptions) *protocol.Handler {
	h := protocol.NewHandler()

	h.Register(protocol.MethodVerify, func(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.VerifyParams](params)
		if perr != nil {
			return nil, perr
		}
		if len(p.Specs) == 0 {
			return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: "specs is required"}
		}

		opts := verifyOptions{
			Facts:     p.Facts,
			Recorded:  p.Recorded,
			Params:    paramPairs(p.Params),
			Filter:    p.Filter,
			Seed:      p.Seed,
			RunFailed: p.RunFailed,
			RunReason: p.RunReason,
			NoHistory: p.NoHistory,
			filterSet: p.Filter != "",
			seedSet:   p.Seed != 0,
		}
		res, err := executeVerify(ctx, root, opts, p.Specs, nil)
		if err != nil {
			return nil, rpcError(err)
		}
		return verifyResult(res), nil
	})

	h.Register(protocol.MethodValidate, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.ValidateParams](params)
		if perr != nil {
			return nil, perr
		}
		if len(p.Specs) == 0 {
			return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: "specs is required"}
		}
		docs, err := spec.LoadSpecs(afero.NewOsFs(), p.Specs, p.Params)
		if err != nil {
			return nil, rpcError(err)
		}
		results, _ := validateDocs(docs)
		return results, nil
	})

	h.Register(protocol.MethodKinds, func(context.Context, json.RawMessage) (any, *protocol.Error) {
		return kindInfos(), nil
	})

	h.Register(protocol.MethodHistoryList, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.HistoryListParams](params)
		if perr != nil {
			return nil, perr
		}
		var summaries []store.ReportSummary
		err := withStore(root, func(st *store.BoltStore) (err error) {
			summaries, err = st.Reports()
			return err
		})
		if err != nil {
			return nil, rpcError(err)
		}
		if p.Limit > 0 && len(summaries) > p.Limit {
			summaries = summaries[:p.Limit]
		}
		if summaries == nil {
			summaries = []store.ReportSummary{}
		}
		return summaries, nil
	})

	h.Register(protocol.MethodHistoryShow, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.HistoryShowParams](params)
		if perr != nil {
			return nil, perr
		}
		var r verify.Report
		err := withStore(root, func(st *store.BoltStore) (err error) {
			r, err = st.Report(p.ID)
			return err
		})
		if err != nil {
			return nil, rpcError(err)
		}
		return r, nil
	})

	h.Register(protocol.MethodHistoryDiff, func(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
		p, perr := protocol.ParseParams[protocol.HistoryDiffParams](params)
		if perr != nil {
			return nil, perr
		}
		var before, after verify.Report
		err := withStore(root, func(st *store.BoltStore) (err error) {
			if before, err = st.Report(p.Before); err != nil {
				return err
			}
			after, err = st.Report(p.After)
			return err
		})
		if err != nil {
			return nil, rpcError(err)
		}
		changes := verify.Diff(before, after)
		if changes == nil {
			changes = []verify.Change{}
		}
		return changes, nil
	})

	return h
}

func withStore(root *rootOptions, fn func(st *store.BoltStore) error) error {
	st, err := openStore(root.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func paramPairs(params map[string]string) []string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}

func verifyResult(res runner.Result) protocol.VerifyResult {
	out := protocol.VerifyResult{
		Status:   string(res.Status),
		ReportID: res.Report.ID,
		Outcomes: make([]protocol.OutcomeResult, 0, len(res.Outcomes)),
	}
	out.Passed, out.Failed = res.Report.Counts()
	for _, o := range res.Outcomes {
		out.Outcomes = append(out.Outcomes, outcomeResult(o))
	}
	return out
}

func outcomeResult(o report.Outcome) protocol.OutcomeResult {
	return protocol.OutcomeResult{Name: o.Name, Passed: o.Passed, Message: o.Message}
}

// rpcError maps command errors to JSON-RPC error codes.
func rpcError(err error) *protocol.Error {
	var vr spec.ValidationResult
	switch {
	case errors.As(err, &vr):
		return &protocol.Error{Code: protocol.CodeSpecInvalid, Message: err.Error(), Data: vr.Errors}
	case errors.Is(err, runner.ErrRunFailed):
		return &protocol.Error{Code: protocol.CodeRunSkipped, Message: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return &protocol.Error{Code: protocol.CodeNotFound, Message: err.Error()}
	case errors.Is(err, fs.ErrNotExist):
		return &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	return protocol.ErrorFrom(err, protocol.CodeInternalError)
}
