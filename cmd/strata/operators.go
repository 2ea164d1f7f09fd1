package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacentio/strata/backend/dynamo"
	"github.com/jacentio/strata/backend/sqlstore"
	"github.com/jacentio/strata/backend/textstore"
	"github.com/jacentio/strata/query"
)

// tables lists the operator table of every backend in display order.
var tables = []query.OperatorTable{
	dynamo.Operators,
	sqlstore.Operators,
	textstore.Operators,
}

func newOperatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "Print how each backend translates the query operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprint(w, "OPERATOR")
			for _, t := range tables {
				fmt.Fprintf(w, "\t%s", t.Dialect)
			}
			fmt.Fprintln(w)

			rows := make([][]query.TableRow, len(tables))
			for i, t := range tables {
				rows[i] = t.Rows()
			}
			for r, op := range query.Operators() {
				fmt.Fprint(w, op)
				for i := range tables {
					row := rows[i][r]
					if row.Supported {
						fmt.Fprintf(w, "\t%s", row.Fragment)
					} else {
						fmt.Fprint(w, "\t-")
					}
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
}
