package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ukp-square/squarectl/internal/config"
	"github.com/ukp-square/squarectl/internal/env"
	"github.com/ukp-square/squarectl/internal/task"
	"github.com/ukp-square/squarectl/x/pip"
	"github.com/ukp-square/squarectl/x/precommit"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the runtime dependencies",
	Long: `Install upgrades pip and installs the runtime dependency manifest.
Steps run in order and the first failure aborts the install.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context(), false)
	},
}

var installDevCmd = &cobra.Command{
	Use:   "install-dev",
	Short: "Install the development dependencies and the pre-commit hook",
	Long: `Install-dev upgrades pip, installs the development dependency
manifest, and registers the git pre-commit hook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd.Context(), true)
	},
}

func init() {
	rootCmd.AddCommand(installCmd, installDevCmd)
}

func runInstall(ctx context.Context, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workDir, err := env.WorkDir()
	if err != nil {
		return envError(err)
	}
	unlock, err := task.Lock(workDir, ".install.lock")
	if err != nil {
		return envError(err)
	}
	defer unlock()

	p := pip.New(cfg.Python)
	if err := checkTool(ctx, cfg, "pip", p.Version); err != nil {
		return err
	}

	recipe := installRecipe(cfg, p, dev)
	return recipe.Run(ctx, logger)
}

// installRecipe builds the step sequence for install or install-dev.
func installRecipe(cfg *config.Config, p *pip.Pip, dev bool) *task.Recipe {
	manifest := cfg.Requirements
	name := "install"
	if dev {
		manifest = cfg.DevRequirements
		name = "install-dev"
	}

	steps := []task.Step{
		{Name: "upgrade pip", Do: p.SelfUpgrade},
		{Name: "install " + manifest, Do: func(ctx context.Context) error {
			return p.Install(ctx, manifest)
		}},
	}
	if dev {
		steps = append(steps, task.Step{
			Name: "install pre-commit hook",
			Do:   precommit.New().Install,
		})
	}
	return &task.Recipe{Name: name, Steps: steps}
}

// checkTool probes the tool's version and compares it against the
// configured minimum, if any.
func checkTool(ctx context.Context, cfg *config.Config, tool string, version func(context.Context) (string, error)) error {
	if _, ok := cfg.Tools[tool]; !ok {
		return nil
	}
	installed, err := version(ctx)
	if err != nil {
		return envError(fmt.Errorf("probe %s version: %w", tool, err))
	}
	logger.Debug("tool version", zap.String("tool", tool), zap.String("version", installed))
	if err := cfg.CheckToolVersion(tool, installed); err != nil {
		return envError(err)
	}
	return nil
}
