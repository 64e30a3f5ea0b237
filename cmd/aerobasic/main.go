package main

import (
	"fmt"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	aerobasic "github.com/blitheli/AeroBasic"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aerobasic",
		Short:         "Lambert targeting and orbit propagation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file or directory holding conf.toml (default $"+aerobasic.ConfigEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or none")
	rootCmd.AddCommand(newLambertCmd(), newPropagateCmd(), newEventCmd())
	return rootCmd
}

// loadConfig returns the configuration and a logger for the provided subsystem.
func loadConfig(subsys string) (aerobasic.Config, kitlog.Logger, error) {
	var (
		conf aerobasic.Config
		err  error
	)
	if configPath != "" {
		conf, err = aerobasic.LoadConfig(configPath)
	} else {
		conf, err = aerobasic.ConfigFromEnv()
	}
	if err != nil {
		return conf, nil, err
	}
	lvl := conf.LogLevel
	if logLevel != "" {
		lvl = logLevel
	}
	logger, err := aerobasic.NewLogger(os.Stderr, lvl, subsys)
	return conf, logger, err
}
