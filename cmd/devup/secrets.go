// secrets.go checks required keys and reports remediation hints.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/devup/internal/config"
	"github.com/example/devup/internal/envfile"
	"github.com/example/devup/internal/logging"
)

func newSecretsCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Inspect secret resolution",
	}
	cmd.AddCommand(newSecretsCheckCommand(opts))
	return cmd
}

func newSecretsCheckCommand(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate required keys against the resolved environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsCheck(opts)
		},
	}
	opts.BindFlags(cmd.Flags())
	return cmd
}

func runSecretsCheck(opts *config.Options) error {
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
	if err := envfile.CheckCycles(entries); err != nil {
		fmt.Printf("  %s %s\n", stepFailed("✗"), err)
	}
	result := envfile.Validate(entries, opts.RequiredKeys)

	for _, key := range opts.RequiredKeys {
		entry, ok := entries[key]
		switch {
		case contains(result.MissingKeys, key):
			fmt.Printf("  %s %s missing: add it to .env.local or export it before running devup\n", stepFailed("✗"), key)
		case contains(result.InvalidKeys, key):
			fmt.Printf("  %s %s set but looks like a placeholder (%s)\n", stepFailed("✗"), key, envfile.Mask(entry.Value))
		case ok:
			fmt.Printf("  %s %s %s %s\n", stepOK("✓"), key, envfile.Mask(entry.Value), stepMuted("("+string(entry.Source)+")"))
		}
	}
	for _, warning := range result.Warnings {
		fmt.Printf("  %s %s\n", stepWarn("!"), warning)
	}

	if !result.IsValid {
		return fmt.Errorf("%d of %d required keys unresolved", len(result.MissingKeys)+len(result.InvalidKeys), len(opts.RequiredKeys))
	}
	fmt.Printf("\n  all %d required keys resolved\n", len(opts.RequiredKeys))
	return nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
