package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ukp-square/squarectl/client"
	"github.com/ukp-square/squarectl/internal/config"
	"github.com/ukp-square/squarectl/internal/env"
)

var predictInput string

var predictCmd = &cobra.Command{
	Use:   "predict <model> <method>",
	Short: "Request a prediction from a deployed model",
	Long: `Predict submits a prediction request and waits for the result.
The request body is read as JSON from --input, or standard input when
--input is "-". Decoded model outputs are printed as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "-", "JSON request body file (- for stdin)")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var data []byte
	if predictInput == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(predictInput)
	}
	if err != nil {
		return configError(fmt.Errorf("read request body: %w", err))
	}
	if !json.Valid(data) {
		return configError(fmt.Errorf("request body is not valid JSON"))
	}

	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	pred, err := c.Predict(cmd.Context(), args[0], args[1], json.RawMessage(data))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outputsJSON(pred.Outputs))
}

// newAPIClient builds the model API client. Environment variables win
// over squarectl.yaml values.
func newAPIClient(cfg *config.Config) (*client.Client, error) {
	opts := []client.Option{client.WithLogger(logger)}
	if env.APIURL() == "" && cfg.API.URL != "" {
		opts = append(opts, client.WithAPIURL(cfg.API.URL))
	}
	if os.Getenv(env.VerifySSLVar) == "" && cfg.API.VerifySSL {
		opts = append(opts, client.WithVerifySSL(true))
	}
	c, err := client.New(opts...)
	if err != nil {
		return nil, envError(err)
	}
	return c, nil
}

// outputsJSON renders decoded model outputs as plain JSON values:
// tensors become objects with shape, dtype and flattened data.
func outputsJSON(outputs map[string]client.Output) map[string]any {
	rendered := make(map[string]any, len(outputs))
	for name, out := range outputs {
		rendered[name] = outputJSON(out)
	}
	return rendered
}

func outputJSON(out client.Output) any {
	if out.Tensor != nil {
		v := map[string]any{
			"shape": out.Tensor.Shape,
			"dtype": out.Tensor.Descr,
		}
		if data, err := out.Tensor.Float64s(); err == nil {
			v["data"] = data
		} else {
			v["data"] = out.Tensor.Data
		}
		return v
	}
	items := make([]any, len(out.Items))
	for i, item := range out.Items {
		items[i] = outputJSON(item)
	}
	return items
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
