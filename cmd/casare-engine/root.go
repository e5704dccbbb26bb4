package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/casarerpa/engine/pkg/logger"
)

var (
	flagConfigFile string
	flagLogLevel   string
	flagRunDir     string
)

// RootCmd builds the casare-engine root command and its subcommands.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casare-engine",
		Short: "Reference CLI for the CasareRPA workflow execution core",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			viper.SetEnvPrefix("CASARE")
			viper.AutomaticEnv()
			if flagLogLevel == "" {
				flagLogLevel = viper.GetString("log_level")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to an engine.yaml config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", string(logger.InfoLevel), "debug|info|warn|error")
	root.PersistentFlags().StringVar(&flagRunDir, "run-dir", defaultRunDir(), "directory for pidfiles and event logs of in-flight runs")
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		validateCmd(),
		runCmd(),
		pauseCmd(),
		resumeCmd(),
		cancelCmd(),
		eventsCmd(),
	)
	return root
}

func defaultRunDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".casare-engine"
	}
	return dir + "/casare-engine"
}
