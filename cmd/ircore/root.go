package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	options := &rootOptions{}
	root := &cobra.Command{
		Use:           "ircore",
		Short:         "IRC client protocol core",
		Long:          `Connects to the configured IRC networks and logs what the protocol core makes of the traffic.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&options.configPath, "config", "c", "ircore.toml", "path to a .toml or .yaml config file")
	root.PersistentFlags().BoolVarP(&options.verbose, "verbose", "v", false, "log at debug level")
	root.AddCommand(newRunCommand(options))
	root.AddCommand(newDecodeCommand())
	return root
}

// buildLogger returns a production logger at level, or debug when verbose.
func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	if verbose {
		parsed = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsed)
	return config.Build()
}
