// env.go prints the resolved environment with masked values.
package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/devup/internal/config"
	"github.com/example/devup/internal/envfile"
	"github.com/example/devup/internal/logging"
)

func newEnvCommand(opts *config.Options) *cobra.Command {
	var showValues bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the resolved environment (values masked by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(opts, showValues)
		},
	}
	cmd.Flags().BoolVar(&showValues, "show-values", false, "Print full values instead of masked ones")
	opts.BindFlags(cmd.Flags())
	return cmd
}

func runEnv(opts *config.Options, showValues bool) error {
	if err := opts.Complete(); err != nil {
		return err
	}
	logger, err := logging.New(opts.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	chain := envfile.NewChain(opts.WorkDir, logger)
	entries := envfile.Resolve(chain.Load(), logger)

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := entries[key]
		value := envfile.Mask(entry.Value)
		if showValues {
			value = entry.Value
		}
		fmt.Printf("%s=%s %s\n", key, value, stepMuted("("+string(entry.Source)+")"))
	}
	return nil
}
