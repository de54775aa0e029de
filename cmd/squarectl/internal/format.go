package internal

import (
	"github.com/spf13/cobra"

	"github.com/ukp-square/squarectl/x/black"
)

var formatCheck bool

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Run the configured formatter over the tree",
	Long: `Format runs the configured formatter command ("black ." by default).
The formatter's exit status is passed through, so --check failures
surface exactly as the formatter reports them.`,
	Args: cobra.NoArgs,
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().BoolVar(&formatCheck, "check", false, "Report files that would change without rewriting them")
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, extra, err := cfg.FormatterCommand()
	if err != nil {
		return configError(err)
	}

	b := black.New(name, extra...)
	if err := checkTool(cmd.Context(), cfg, name, b.Version); err != nil {
		return err
	}
	if formatCheck {
		return b.Check(cmd.Context())
	}
	return b.Format(cmd.Context())
}
