package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantfabric/barforge/internal/timeframe"
)

func newTimeframesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeframes",
		Short: "List the registered timeframe specs",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := timeframe.DefaultRegistry()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tUNIT\tCOUNT\tMODE\tSCHEME\tPARTIAL_START\tNOMINAL_DAYS")
			for _, spec := range reg.All() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%v\t%d\n",
					spec.Label, spec.Unit, spec.Count, spec.Mode, spec.Scheme,
					spec.AllowPartialStart, spec.NominalDays)
			}
			return w.Flush()
		},
	}
}
