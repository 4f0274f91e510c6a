package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const starterSpec = `apiVersion: idemverify/v1
kind: VerificationSpec
meta:
  name: "example"
  description: "Resources converged by the example run"
params:
  - name: "root_user"
    default: root
resources:
  - kind: file
    name: /etc/hosts
    expect:
      owner: "{{root_user}}"
      group: root
      mode: "0644"
  - kind: directory
    name: /var/log
    expect:
      type: directory
  - kind: user
    name: root
    expect:
      uid: 0
`

func newInitCommand(_ *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter verification spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil {
				return newExitError(ExitCommandError, fmt.Sprintf("file %q already exists (use --output to specify a different path)", output))
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := os.WriteFile(output, []byte(starterSpec), 0o644); err != nil {
				return fmt.Errorf("write spec: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", output)
			fmt.Fprintln(out, "Edit the file to declare your resources, then run:")
			fmt.Fprintf(out, "  idemverify verify %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "idemverify.yaml", "path of the spec to create")
	return cmd
}
