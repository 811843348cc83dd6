package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"algo-viz/api/internal/ir"
	"algo-viz/api/internal/pattern"
)

var routeCmd = &cobra.Command{
	Use:   "route [domain...]",
	Short: "Show the pattern type for domain labels, or the whole table",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if len(args) == 0 {
			table := pattern.Table()
			keys := make([]string, 0, len(table))
			for d := range table {
				keys = append(keys, string(d))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "%-18s %s\n", k, table[ir.Domain(k)])
			}
			fmt.Fprintf(w, "%-18s %s\n", "*", ir.PatternNone)
			return nil
		}
		for _, a := range args {
			d := ir.NormalizeDomain(a)
			fmt.Fprintf(w, "%s\t%s\n", d, pattern.Route(d, nil))
		}
		return nil
	},
}
