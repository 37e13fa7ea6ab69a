package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/config"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	projectPath string
	logLevel    string
	logFormat   string

	logger = slog.Default()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "worksync",
	Version: Version,
	Short:   "Synchronize work items from trackers into one canonical model",
	Long: `worksync reads work items from Jira, Trello and plugin connectors,
classifies their workflow states, infers started and closed dates and
writes derived metrics such as work item age back to the source.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		settings, err := config.LoadSettings(root)
		if err != nil {
			settings = &config.Settings{}
		}
		logger = config.NewLogger(config.ResolveLogging(logLevel, logFormat, settings), cmd.ErrOrStderr())
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI and reports a failure on stderr with its hint. It
// returns the process exit code.
func Execute() int {
	err := RootCmd.Execute()
	if err == nil {
		return 0
	}
	return reportError(RootCmd.ErrOrStderr(), err)
}

func reportError(w io.Writer, err error) int {
	err = MapError(err)
	fmt.Fprintf(w, "Error: %v\n", err)

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Hint != "" {
			fmt.Fprintf(w, "Hint: %s\n", cliErr.Hint)
		}
		return cliErr.ExitCode
	}
	return 1
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "project", "C", "", "Workspace root (defaults to the current directory)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env "+config.EnvLogLevel+")")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (env "+config.EnvLogFormat+")")
}
