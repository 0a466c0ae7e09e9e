// Package cmd provides the command-line interface of eventq.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eventq/sim/eventqueue"
	"github.com/sarchlab/eventq/sim/workload"
)

// NewRootCommand creates the eventq command with all its subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eventq",
		Short: "Benchmark and verify event queue strategies",
		Long: `eventq drives the event queue strategies with the hold model ` +
			`and checks that all of them dequeue identical sequences. ` +
			`Settings come from flags, EVENTQ_* environment variables, a ` +
			`.env file and an optional YAML config file.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			loadDotEnv()
		},
	}

	addCommonFlags(rootCmd)

	rootCmd.AddCommand(newBenchCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}

func addCommonFlags(c *cobra.Command) {
	names := make([]string, 0, len(eventqueue.Strategies()))
	for _, s := range eventqueue.Strategies() {
		names = append(names, s.String())
	}

	f := c.PersistentFlags()
	f.String("config", "", "YAML file to read the settings from")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.Int64("seed", 0, "master seed of every random stream")
	f.StringSlice("strategies", names, "event queue strategies to run")
	f.String("distribution", "exponential",
		"increment distribution, one of "+joinNames(workload.Distributions()))
	f.Float64("mean", 1, "mean increment")
	f.String("tie-break", "fifo", "tie-break policy (fifo, lifo, seeded)")
	f.Int("bucket-count", 0, "initial bucket count, 0 for the default")
	f.Float64("bucket-width", 0, "initial bucket width, 0 for the default")
	f.Int("operations", 100000, "number of measured operations")
}

// loadDotEnv exports the variables of a .env file in the working directory.
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("cannot load .env file")
	}
}

// Execute runs the root command and exits. Exiting goes through atexit so
// that pending recordings are flushed.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
