package client

import (
	"encoding/json"
	"fmt"

	"github.com/ukp-square/squarectl/npy"
)

// Prediction methods accepted by the model API.
const (
	MethodEmbedding              = "embedding"
	MethodSequenceClassification = "sequence-classification"
	MethodTokenClassification    = "token-classification"
	MethodGeneration             = "generation"
	MethodQuestionAnswering      = "question-answering"
)

var supportedMethods = []string{
	MethodEmbedding,
	MethodSequenceClassification,
	MethodTokenClassification,
	MethodGeneration,
	MethodQuestionAnswering,
}

// ModelResponse is the raw prediction payload returned by the API.
type ModelResponse struct {
	ModelOutputs map[string]json.RawMessage `json:"model_outputs"`
	Encoded      bool                       `json:"model_output_is_encoded"`
}

// Output is one decoded model output: a tensor, or a nested list of
// tensors when the API encodes a list of arrays.
type Output struct {
	Tensor *npy.Array
	Items  []Output
}

// Prediction is a decoded prediction result.
type Prediction struct {
	// Outputs maps output names (e.g. "logits", "embeddings") to their
	// decoded arrays.
	Outputs map[string]Output

	// Raw is the response as returned by the API, before decoding.
	Raw ModelResponse
}

// DeployedModel describes one model served by the platform.
type DeployedModel struct {
	Identifier string `json:"identifier"`
	ModelName  string `json:"model_name"`
	ModelType  string `json:"model_type"`
	BatchSize  int    `json:"batch_size"`
	MaxInput   int    `json:"max_input"`
	DisableGPU bool   `json:"disable_gpu"`
}

// DeployRequest holds the attributes of a model to deploy.
type DeployRequest struct {
	Identifier            string `json:"identifier"`
	ModelName             string `json:"model_name"`
	ModelType             string `json:"model_type"`
	DisableGPU            bool   `json:"disable_gpu,omitempty"`
	BatchSize             int    `json:"batch_size,omitempty"`
	MaxInput              int    `json:"max_input,omitempty"`
	TransformersCache     string `json:"transformers_cache,omitempty"`
	ModelClass            string `json:"model_class,omitempty"`
	ReturnPlaintextArrays bool   `json:"return_plaintext_arrays,omitempty"`
	PreloadedAdapters     bool   `json:"preloaded_adapters,omitempty"`
}

// UpdateRequest holds the attributes of a deployed model that may be
// changed in place.
type UpdateRequest struct {
	DisableGPU            *bool `json:"disable_gpu,omitempty"`
	BatchSize             *int  `json:"batch_size,omitempty"`
	MaxInput              *int  `json:"max_input,omitempty"`
	ReturnPlaintextArrays *bool `json:"return_plaintext_arrays,omitempty"`
}

// APIError is returned when the model API answers with a non-success
// status code.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("model API: %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("model API: %s returned status %d", e.URL, e.StatusCode)
}
