package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes per spec.md §6: 0 success, 2 configuration error, 3
// input-file error, 1 unexpected failure.
const (
	exitOK          = 0
	exitUnexpected  = 1
	exitConfigError = 2
	exitInputFile   = 3
)

var (
	logLevel   string
	jsonLogs   bool
	rootLogger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "router",
	Short: "Cognitive bandwidth router",
	Long: `router schedules agent and monitoring tasks for human attention:
immediate paging, batched review, fully automated handling, or parked
for later, based on urgency, model confidence, and how loaded the
operator already is.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if level, err := logrus.ParseLevel(logLevel); err == nil {
			rootLogger.SetLevel(level)
		}
		if jsonLogs {
			rootLogger.SetFormatter(&logrus.JSONFormatter{})
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(optimizeCmd)

	viper.SetEnvPrefix("ROUTER")
	viper.AutomaticEnv()
}

// Execute runs the CLI and returns the process exit code, letting main
// decide whether to actually call os.Exit (kept separate so tests can
// call Execute without terminating the test binary).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if coded, ok := err.(exitCoder); ok {
			fmt.Fprintln(os.Stderr, err)
			return coded.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUnexpected
	}
	return exitOK
}

// exitCoder lets subcommands signal a specific exit code without
// reaching for os.Exit deep inside a RunE, which would bypass cobra's
// usual error printing and any deferred cleanup.
type exitCoder interface {
	error
	ExitCode() int
}

type codedError struct {
	code int
	err  error
}

func (c *codedError) Error() string { return c.err.Error() }
func (c *codedError) ExitCode() int { return c.code }
func (c *codedError) Unwrap() error { return c.err }

func configError(err error) error    { return &codedError{code: exitConfigError, err: err} }
func inputFileError(err error) error { return &codedError{code: exitInputFile, err: err} }
