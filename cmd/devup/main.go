// main.go bootstraps devup: it builds the root Cobra command and executes
// with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/devup/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()
	cmd := &cobra.Command{
		Use:           "devup",
		Short:         "Local development environment launcher",
		Long:          "devup resolves secrets, orders startup steps, and brings a local service stack up through a fixed phase sequence.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level for devup output (debug, info, warn, error)")
	opts.BindFlags(cmd.Flags())

	upCmd := newUpCommand(opts)
	planCmd := newPlanCommand(opts)
	envCmd := newEnvCommand(opts)
	secretsCmd := newSecretsCommand(opts)
	cmd.AddCommand(upCmd, planCmd, envCmd, secretsCmd)
	bindViper(cmd, upCmd, planCmd, envCmd, secretsCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("DEVUP")
	v.AutomaticEnv()
	if configFile := os.Getenv("DEVUP_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".devup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := v.ReadInConfig(); err != nil {
			var cfgErr viper.ConfigFileNotFoundError
			if !errors.As(err, &cfgErr) {
				cobra.CheckErr(err)
			}
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: a startup step exceeded its timeout; re-run with --step-timeout or check the service logs.", err)
	case strings.Contains(message, "docker"):
		message = fmt.Sprintf("%s\nHint: confirm the docker daemon is running and the compose file is valid.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
