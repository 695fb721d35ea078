package main

import (
	"fmt"
	"foodflow/pkg/domain"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List supported regions and their crops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VALUE\tLABEL\tCROPS")
			for _, r := range domain.Regions() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Value, r.Label, strings.Join(r.Crops, ", "))
			}
			return tw.Flush()
		},
	}
}
