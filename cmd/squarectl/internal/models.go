package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ukp-square/squarectl/client"
)

var (
	modelsDeployFile string
	modelsUpdateFile string
	modelsEnsureFile string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage models deployed on the platform",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the deployed models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandClient()
		if err != nil {
			return err
		}
		models, err := c.DeployedModels(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTIFIER\tMODEL\tTYPE\tBATCH")
		for _, m := range models {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", m.Identifier, m.ModelName, m.ModelType, m.BatchSize)
		}
		return w.Flush()
	},
}

var modelsWorkersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Show the deployed models with their worker counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandClient()
		if err != nil {
			return err
		}
		workers, err := c.DeployedModelWorkers(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), workers)
	},
}

var modelsStatsCmd = &cobra.Command{
	Use:   "stats <model>",
	Short: "Show the statistics of a deployed model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandClient()
		if err != nil {
			return err
		}
		stats, err := c.Stats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var modelsDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a new model from an attribute file",
	Long: `Deploy submits a deployment request read as JSON from --file and
waits for the deployment task to finish. Deployments poll at a coarse
interval because workers may need to download model weights first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req client.DeployRequest
		if err := readJSONFile(modelsDeployFile, &req); err != nil {
			return err
		}
		c, err := commandClient()
		if err != nil {
			return err
		}
		result, err := c.Deploy(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printRaw(cmd, result)
	},
}

var modelsRemoveCmd = &cobra.Command{
	Use:   "remove <model>",
	Short: "Remove a deployed model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := commandClient()
		if err != nil {
			return err
		}
		result, err := c.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRaw(cmd, result)
	},
}

var modelsUpdateCmd = &cobra.Command{
	Use:   "update <model>",
	Short: "Update attributes of a deployed model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req client.UpdateRequest
		if err := readJSONFile(modelsUpdateFile, &req); err != nil {
			return err
		}
		c, err := commandClient()
		if err != nil {
			return err
		}
		result, err := c.Update(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var modelsAddWorkerCmd = &cobra.Command{
	Use:   "add-worker <model> <count>",
	Short: "Add inference workers to a deployed model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scaleWorkers(cmd, args, (*client.Client).AddWorker)
	},
}

var modelsRemoveWorkerCmd = &cobra.Command{
	Use:   "remove-worker <model> <count>",
	Short: "Remove inference workers from a deployed model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scaleWorkers(cmd, args, (*client.Client).RemoveWorker)
	},
}

var modelsEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Deploy the model a skill needs unless it is already available",
	Long: `Ensure reads skill arguments as JSON from --file and deploys the
referenced base model (as adapter or plain transformer) unless it is
already deployed or a deployment for it is in flight.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var skillArgs map[string]any
		if err := readJSONFile(modelsEnsureFile, &skillArgs); err != nil {
			return err
		}
		c, err := commandClient()
		if err != nil {
			return err
		}
		return c.DeployIfAbsent(cmd.Context(), skillArgs)
	},
}

func init() {
	modelsDeployCmd.Flags().StringVarP(&modelsDeployFile, "file", "f", "", "JSON file with the deployment attributes")
	modelsDeployCmd.MarkFlagRequired("file")
	modelsUpdateCmd.Flags().StringVarP(&modelsUpdateFile, "file", "f", "", "JSON file with the attributes to change")
	modelsUpdateCmd.MarkFlagRequired("file")
	modelsEnsureCmd.Flags().StringVarP(&modelsEnsureFile, "file", "f", "", "JSON file with the skill arguments")
	modelsEnsureCmd.MarkFlagRequired("file")

	modelsCmd.AddCommand(
		modelsListCmd,
		modelsWorkersCmd,
		modelsStatsCmd,
		modelsDeployCmd,
		modelsRemoveCmd,
		modelsUpdateCmd,
		modelsAddWorkerCmd,
		modelsRemoveWorkerCmd,
		modelsEnsureCmd,
	)
	rootCmd.AddCommand(modelsCmd)
}

// commandClient builds an API client from the loaded configuration.
func commandClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg)
}

func scaleWorkers(cmd *cobra.Command, args []string, op func(*client.Client, context.Context, string, int) (json.RawMessage, error)) error {
	count, err := parseCount(args[1])
	if err != nil {
		return configError(err)
	}
	c, err := commandClient()
	if err != nil {
		return err
	}
	result, err := op(c, cmd.Context(), args[0], count)
	if err != nil {
		return err
	}
	return printRaw(cmd, result)
}

// parseCount parses a worker count argument. Counts are positive.
func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("worker count must be at least 1, got %d", n)
	}
	return n, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return configError(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return configError(fmt.Errorf("parse %s: %w", path, err))
	}
	return nil
}

func printRaw(cmd *cobra.Command, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}
	return printJSON(cmd.OutOrStdout(), v)
}
