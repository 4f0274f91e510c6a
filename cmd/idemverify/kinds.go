package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/pkg/protocol"
	"github.com/cgast/idemverify/pkg/resource"
)

func newKindsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the resource kinds that can be verified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := kindInfos()
			out := cmd.OutOrStdout()

			if root.jsonOutput() {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			for _, k := range infos {
				fmt.Fprintf(out, "%-18s %s\n", k.Kind, k.Description)
				if len(k.RequiredArgs) > 0 {
					fmt.Fprintf(out, "%-18s args: %s\n", "", strings.Join(k.RequiredArgs, ", "))
				}
				fmt.Fprintf(out, "%-18s attributes: %s\n", "", strings.Join(k.Attributes, ", "))
			}
			return nil
		},
	}
}

func kindInfos() []protocol.KindInfo {
	specs := resource.Kinds()
	infos := make([]protocol.KindInfo, len(specs))
	for i, s := range specs {
		infos[i] = protocol.KindInfo{
			Kind:         string(s.Kind),
			Description:  s.Description,
			RequiredArgs: s.RequiredArgs,
			Attributes:   s.Attributes,
		}
	}
	return infos
}
