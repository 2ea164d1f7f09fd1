package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jacentio/strata/backend/dynamo"
	"github.com/jacentio/strata/backend/sqlstore"
	"github.com/jacentio/strata/backend/textstore"
	"github.com/jacentio/strata/query"
)

func newRenderCmd() *cobra.Command {
	var (
		backend     string
		placeholder string
	)
	cmd := &cobra.Command{
		Use:   "render <condition.json|->",
		Short: "Render a condition file for one or every backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := readCondition(cmd, args[0])
			if err != nil {
				return err
			}
			dialects, err := selectDialects(backend, placeholder)
			if err != nil {
				return err
			}
			for _, d := range dialects {
				if err := renderOne(cmd.OutOrStdout(), cond, d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "all", "dynamodb, sql, textstore or all")
	cmd.Flags().StringVar(&placeholder, "placeholder", "question", "sql placeholder style: question or dollar")
	return cmd
}

func readCondition(cmd *cobra.Command, path string) (query.Condition, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return query.UnmarshalJSON(data)
}

func selectDialects(backend, placeholder string) ([]query.Dialect, error) {
	sqlDialect := sqlstore.Dialect{}
	switch placeholder {
	case "question", "":
	case "dollar":
		sqlDialect.Placeholder = sqlstore.Dollar
	default:
		return nil, fmt.Errorf("unknown placeholder style %q", placeholder)
	}

	switch backend {
	case "all":
		return []query.Dialect{dynamo.Dialect{}, sqlDialect, textstore.Dialect{}}, nil
	case "dynamodb":
		return []query.Dialect{dynamo.Dialect{}}, nil
	case "sql":
		return []query.Dialect{sqlDialect}, nil
	case "textstore":
		return []query.Dialect{textstore.Dialect{}}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func renderOne(w io.Writer, cond query.Condition, d query.Dialect) error {
	fmt.Fprintf(w, "%s:\n", d.Name())
	expr, err := query.Render(cond, d)
	if err != nil {
		fmt.Fprintf(w, "  error: %v\n", err)
		return nil
	}

	text := expr.Text
	if _, ok := d.(textstore.Dialect); ok {
		text = textstore.Filter(expr)
	}
	if text == "" {
		text = "(match all)"
	}
	fmt.Fprintf(w, "  %s\n", text)

	if len(expr.Args) > 0 {
		args, err := json.Marshal(expr.Args)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  args: %s\n", args)
	}
	for _, k := range sortedKeys(expr.Names) {
		fmt.Fprintf(w, "  %s = %s\n", k, expr.Names[k])
	}
	for _, k := range sortedKeys(expr.Values) {
		v, err := json.Marshal(expr.Values[k])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s = %s\n", k, v)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
