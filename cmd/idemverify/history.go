package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/idemverify/internal/inspector"
	"github.com/cgast/idemverify/pkg/report"
	"github.com/cgast/idemverify/pkg/verify"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived verification reports",
	}
	cmd.AddCommand(newHistoryListCommand(root))
	cmd.AddCommand(newHistoryShowCommand(root))
	cmd.AddCommand(newHistoryDiffCommand(root))
	cmd.AddCommand(newHistoryPruneCommand(root))
	cmd.AddCommand(newHistoryServeCommand(root))
	return cmd
}

func newHistoryListCommand(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			summaries, err := st.Reports()
			if err != nil {
				return err
			}
			if limit > 0 && len(summaries) > limit {
				summaries = summaries[:limit]
			}

			out := cmd.OutOrStdout()
			if root.jsonOutput() {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			for _, s := range summaries {
				fmt.Fprintf(out, "%s  %-4s  %3d passed  %3d failed  %s  %s\n",
					shortID(s.ID), s.Outcome, s.Passed, s.Failed, s.StartedAt.Format(time.RFC3339), s.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n reports")
	return cmd
}

func newHistoryShowCommand(root *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived report (an unambiguous id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			r, err := st.Report(args[0])
			if err != nil {
				return wrapExitError(ExitCommandError, "history", err)
			}

			var sink report.Sink = &report.TextSink{W: cmd.OutOrStdout(), Verbose: verbose}
			if root.jsonOutput() {
				sink = &report.JSONSink{W: cmd.OutOrStdout(), Indent: true}
			}
			return sink.Publish(cmd.Context(), report.Batch{Report: r, Outcomes: report.Outcomes(r)})
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print passing outcomes too")
	return cmd
}

func newHistoryDiffCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Show attributes whose outcome changed between two reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			before, err := st.Report(args[0])
			if err != nil {
				return wrapExitError(ExitCommandError, "history", err)
			}
			after, err := st.Report(args[1])
			if err != nil {
				return wrapExitError(ExitCommandError, "history", err)
			}

			changes := verify.Diff(before, after)
			out := cmd.OutOrStdout()
			if root.jsonOutput() {
				if changes == nil {
					changes = []verify.Change{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(changes)
			}

			if len(changes) == 0 {
				fmt.Fprintln(out, "no changes")
				return nil
			}
			for _, c := range changes {
				fmt.Fprintf(out, "%-9s %s%s\n", c.Type, c.Name(), changeDetail(c))
			}
			return nil
		},
	}
}

func changeDetail(c verify.Change) string {
	switch {
	case c.Before != nil && c.After != nil:
		return fmt.Sprintf(": %s -> %s", c.Before.Actual, c.After.Actual)
	case c.After != nil:
		return fmt.Sprintf(" (%s)", c.After.Outcome)
	case c.Before != nil:
		return fmt.Sprintf(" (was %s)", c.Before.Outcome)
	}
	return ""
}

func newHistoryPruneCommand(root *rootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = root.cfg.Store.Keep
			}
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			n, err := st.Prune(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d reports\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "number of reports to keep (default from config)")
	return cmd
}

func newHistoryServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve archived reports over HTTP",
		Long: `Serve exposes the report archive as read-only JSON:

  GET /api/status
  GET /api/reports?limit=N
  GET /api/reports/{id}
  GET /api/diff?before=ID&after=ID
  GET /api/facts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return wrapExitError(ExitCommandError, "listen", err)
			}
			srv := &http.Server{
				Handler:           inspector.New(st, root.logger).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving history on http://%s\n", ln.Addr())
			return serveUntilDone(cmd.Context(), srv, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "listen address")
	return cmd
}

// serveUntilDone runs srv on ln and shuts it down when ctx is cancelled.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
