package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sidkik/lds/cmd/util"
	"github.com/sidkik/lds/cmd/version"
	"github.com/sidkik/lds/pkg/config"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "LDS_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath, logFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "lds <source> <destination>",
		Short: "Mirror a directory to another as it changes",
		Long: `Watch the source directory, and copy every change to the destination
directory with rsync. The destination is first brought fully in sync
with the source, and is kept in sync until lds exits.

lds only exits on fatal errors, such as running out of inotify watches.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose || os.Getenv(verboseLogKey) == "true", logFile)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runDaemon(args[0], args[1], configPath)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "",
		fmt.Sprintf("path to the config file (default %s)", config.DefaultPath))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log debug messages")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also write logs to this file, rotating it as it grows")

	rootCmd.AddCommand(version.New())
	return rootCmd
}

func setupLogging(verbose bool, logFile string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if logFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}))
	}
}
