package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ukp-square/squarectl/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default squarectl.yaml to the current directory",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultFileName
	}
	if err := config.Default().Save(path); err != nil {
		return configError(err)
	}
	fmt.Println("wrote", path)
	return nil
}
