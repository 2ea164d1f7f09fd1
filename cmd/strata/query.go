package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		where   string
		idField string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Print the raw records of a table matching a condition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd)
			if err != nil {
				return err
			}

			var cond query.Condition
			if where != "" {
				if cond, err = readCondition(cmd, where); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			backend, closeFn, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			expr, err := query.Render(cond, backend.Dialect())
			if err != nil {
				return err
			}
			logger.Debug("running query", "backend", backend.Name(), "table", args[0], "filter", expr.Text)

			records, err := backend.Query(ctx, store.QueryRequest{
				Table:   args[0],
				IDField: idField,
				Expr:    expr,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, so := range records {
				if err := enc.Encode(so); err != nil {
					return err
				}
			}
			logger.Info("query finished", "table", args[0], "records", len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "condition file (JSON, - for stdin)")
	cmd.Flags().StringVar(&idField, "id-field", "id", "identifier column of the table")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (0 = all)")
	return cmd
}
