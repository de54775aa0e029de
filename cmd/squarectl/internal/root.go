package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ukp-square/squarectl/internal/config"
	"github.com/ukp-square/squarectl/internal/task"
)

// Exit statuses beyond plain tool failures, which keep the exit status
// of the failed tool.
const (
	exitConfigError = 78
	exitEnvError    = 71
)

var (
	flagVerbose bool
	flagConfig  string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "squarectl",
	Short: "squarectl automates the SQuARE model-client project workflow",
	Long: `squarectl automates the SQuARE model-client project workflow:
dependency installation, formatting, releases, and talking to the
deployed model API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to squarectl.yaml")
}

func setupLogger() error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = l
	return nil
}

// Execute runs the root command and exits the process with a status
// reflecting the failure: the failed tool's own exit status for tool
// failures, or a distinct status for configuration and environment
// errors.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "squarectl:", err)
	os.Exit(exitCode(err))
}

// codedError carries a fixed exit status through the error chain.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func configError(err error) error { return &codedError{code: exitConfigError, err: err} }
func envError(err error) error    { return &codedError{code: exitEnvError, err: err} }

func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return task.ExitCode(err)
}

// loadConfig reads the configuration named by --config, or the default
// squarectl.yaml.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}
