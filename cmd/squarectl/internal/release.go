package internal

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukp-square/squarectl/internal/dist"
	"github.com/ukp-square/squarectl/x/pybuild"
	"github.com/ukp-square/squarectl/x/twine"
)

var (
	releaseDryRun       bool
	releaseSkipExisting bool
)

var releaseCmd = &cobra.Command{
	Use:   "manual-release",
	Short: "Build the release artifacts and upload them to the package index",
	Long: `Manual-release builds the source and wheel distributions, verifies
and checksums them, and uploads them with twine. Index credentials come
from twine's own environment (TWINE_USERNAME, TWINE_PASSWORD); squarectl
never reads or stores them.`,
	Args: cobra.NoArgs,
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Build and verify but skip the upload")
	releaseCmd.Flags().BoolVar(&releaseSkipExisting, "skip-existing", false, "Do not fail on files already present in the index")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	builder := pybuild.New(cfg.Python)
	builder.OutDir(cfg.DistDir)
	if err := builder.Run(ctx, ""); err != nil {
		return fmt.Errorf("build artifacts: %w", err)
	}

	artifacts, err := dist.Collect(cfg.DistDir)
	if err != nil {
		return err
	}
	if err := dist.Verify(artifacts); err != nil {
		return err
	}
	staged, err := dist.Stage(ctx, artifacts, filepath.Join(cfg.DistDir, "staged"))
	if err != nil {
		return err
	}
	fmt.Print(dist.Summary(staged))

	tw := twine.New()
	if cfg.RepositoryURL != "" {
		tw.RepositoryURL(cfg.RepositoryURL)
	}
	if releaseSkipExisting {
		tw.SkipExisting()
	}

	files := dist.Paths(staged)
	if err := tw.Check(ctx, files...); err != nil {
		return err
	}
	if releaseDryRun {
		logger.Info("dry run, skipping upload", zap.Int("artifacts", len(files)))
		return nil
	}
	return tw.Upload(ctx, files...)
}
