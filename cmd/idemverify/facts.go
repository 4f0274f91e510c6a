package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/pkg/spec"
)

func newFactsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Manage facts recorded by convergence runs",
	}
	cmd.AddCommand(newFactsImportCommand(root))
	cmd.AddCommand(newFactsListCommand(root))
	cmd.AddCommand(newFactsClearCommand(root))
	return cmd
}

func newFactsImportCommand(root *rootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <facts.yaml>...",
		Short: "Import facts files into the store",
		Long: `Import facts files into the store, where verify --recorded resolves
resources from them. Facts for a resource replace earlier ones.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			var entries []spec.FactEntry
			for _, p := range args {
				e, err := spec.LoadFacts(fs, p)
				if err != nil {
					return wrapExitError(ExitCommandError, "load facts", err)
				}
				entries = append(entries, e...)
			}

			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			if replace {
				n, err := st.ClearFacts()
				if err != nil {
					return fmt.Errorf("clear facts: %w", err)
				}
				root.logger.Debug("cleared recorded facts", "count", n)
			}
			for _, e := range entries {
				if err := st.PutFacts(e.Ref(), e.Attributes); err != nil {
					return fmt.Errorf("store facts for %s: %w", e.Ref(), err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported facts for %d resources\n", len(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "clear recorded facts before importing")
	return cmd
}

func newFactsListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			records, err := st.ListFacts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.jsonOutput() {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			for _, r := range records {
				names := make([]string, 0, len(r.Attributes))
				for k := range r.Attributes {
					names = append(names, k)
				}
				sort.Strings(names)
				fmt.Fprintf(out, "%s  %s\n", r.Ref.Key(), strings.Join(names, ","))
			}
			return nil
		},
	}
}

func newFactsClearCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(root.cfg.Store.Path)
			if err != nil {
				return wrapExitError(ExitCommandError, "store", err)
			}
			defer st.Close()

			n, err := st.ClearFacts()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared facts for %d resources\n", n)
			return nil
		},
	}
}
