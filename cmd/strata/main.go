// Command strata inspects operator tables, renders condition files for each
// backend and runs queries against a configured backend.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/strata/internal/config"
	"github.com/jacentio/strata/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "strata",
		Short:         "Backend-agnostic object mapping toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newOperatorsCmd(),
		newRenderCmd(),
		newQueryCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	// logs go to stderr so query output stays machine readable
	return cfg, logging.New(cfg.Log, cmd.ErrOrStderr()), nil
}
