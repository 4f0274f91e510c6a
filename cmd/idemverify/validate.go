package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/pkg/protocol"
	"github.com/cgast/idemverify/pkg/spec"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "validate <spec>...",
		Short: "Check verification specs without inspecting anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := spec.ParseParams(params)
			if err != nil {
				return wrapExitError(ExitCommandError, "parse params", err)
			}
			docs, err := spec.LoadSpecs(afero.NewOsFs(), args, p)
			if err != nil {
				return wrapExitError(ExitCommandError, "load spec", err)
			}

			results, invalid := validateDocs(docs)

			out := cmd.OutOrStdout()
			if root.jsonOutput() {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(out, "%s: spec %q is valid\n", r.Path, r.Name)
					} else {
						fmt.Fprintf(out, "%s: spec %q is invalid\n", r.Path, r.Name)
					}
					for _, e := range r.Errors {
						fmt.Fprintf(out, "  error: %s\n", e)
					}
					for _, w := range r.Warnings {
						fmt.Fprintf(out, "  warning: %s\n", w)
					}
				}
			}

			if invalid > 0 {
				return newExitError(ExitFailure, fmt.Sprintf("%d of %d specs invalid", invalid, len(results)))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "spec parameter key=value (repeatable)")
	return cmd
}

// validateDocs validates every document and counts the invalid ones.
func validateDocs(docs []spec.Document) ([]protocol.ValidateResult, int) {
	results := make([]protocol.ValidateResult, 0, len(docs))
	invalid := 0
	for _, d := range docs {
		vr := spec.ValidateSpec(d.Spec)
		res := protocol.ValidateResult{Path: d.Path, Name: d.Spec.Meta.Name, Valid: vr.Valid()}
		for _, e := range vr.Errors {
			res.Errors = append(res.Errors, e.Error())
		}
		for _, w := range vr.Warnings {
			res.Warnings = append(res.Warnings, w.Error())
		}
		if !res.Valid {
			invalid++
		}
		results = append(results, res)
	}
	return results, invalid
}
