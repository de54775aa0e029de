// Package client implements a Go client for the SQuARE model API.
//
// The client authenticates with OAuth2 client credentials, submits
// prediction requests, polls the task-result endpoint until results
// are computed and decodes NumPy-encoded model outputs.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ukp-square/squarectl/internal/env"
)

// Polling defaults, matching the platform's other clients.
const (
	DefaultMaxAttempts  = 50
	DefaultPollInterval = 2 * time.Second

	// Deployments are slow; they poll at a coarser interval.
	deployPollInterval = 20 * time.Second
)

// ErrTaskTimeout is returned when a task result is still unavailable
// after the configured number of polling attempts.
var ErrTaskTimeout = errors.New("task result not ready after polling")

// Client talks to the SQuARE model API.
type Client struct {
	apiURL       string
	hc           *http.Client
	tokens       oauth2.TokenSource
	logger       *zap.Logger
	maxAttempts  int
	pollInterval time.Duration
	verifySSL    bool
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the SQUARE_API_URL environment variable.
func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = strings.TrimSuffix(url, "/") }
}

// WithLogger attaches a logger. Requests are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTokenSource overrides the client-credentials flow, e.g. with a
// static token in tests.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithPolling overrides the task polling parameters.
func WithPolling(maxAttempts int, interval time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.pollInterval = interval
	}
}

// WithVerifySSL overrides the VERIFY_SSL environment variable.
func WithVerifySSL(verify bool) Option {
	return func(c *Client) { c.verifySSL = verify }
}

// New builds a Client from the environment (SQUARE_API_URL, VERIFY_SSL
// and the Keycloak client-credentials variables), then applies opts.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		apiURL:       strings.TrimSuffix(env.APIURL(), "/"),
		logger:       zap.NewNop(),
		maxAttempts:  DefaultMaxAttempts,
		pollInterval: DefaultPollInterval,
		verifySSL:    env.VerifySSL(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiURL == "" {
		return nil, fmt.Errorf("model API URL is not configured (set %s)", env.APIURLVar)
	}

	base := &http.Client{
		Timeout: 60 * time.Second,
	}
	if !c.verifySSL {
		base.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	if c.tokens == nil {
		creds, err := env.LoadCredentials()
		if err != nil {
			return nil, err
		}
		c.tokens = newTokenSource(creds, base)
	}

	c.hc = &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: c.tokens,
			Base:   base.Transport,
		},
	}
	return c, nil
}

// Predict requests a prediction from a model and waits for the result.
// method must be one of the Method constants. input is serialized to
// JSON as the request body.
func (c *Client) Predict(ctx context.Context, modelID, method string, input any) (*Prediction, error) {
	if !slices.Contains(supportedMethods, method) {
		return nil, fmt.Errorf("unknown prediction method %q, choose one of %s",
			method, strings.Join(supportedMethods, ", "))
	}

	url := fmt.Sprintf("%s/main/%s/%s", c.apiURL, modelID, method)
	c.logger.Debug("requesting prediction", zap.String("url", url))

	var submitted taskSubmission
	if err := c.doJSON(ctx, http.MethodPost, url, input, &submitted); err != nil {
		return nil, err
	}

	result, err := c.waitForTask(ctx, submitted.TaskID, c.maxAttempts, c.pollInterval)
	if err != nil {
		return nil, err
	}

	var resp ModelResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parse prediction result: %w", err)
	}
	outputs, err := decodeOutputs(&resp)
	if err != nil {
		return nil, err
	}
	return &Prediction{Outputs: outputs, Raw: resp}, nil
}

// Stats returns the statistics of a deployed model.
func (c *Client) Stats(ctx context.Context, modelID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/main/%s/stats", c.apiURL, modelID)
	var stats map[string]any
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// DeployedModels returns all models currently served by the platform.
func (c *Client) DeployedModels(ctx context.Context) ([]DeployedModel, error) {
	url := c.apiURL + "/models/deployed-models"
	var models []DeployedModel
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// DeployedModelWorkers returns the per-model worker assignments.
func (c *Client) DeployedModelWorkers(ctx context.Context) (map[string]any, error) {
	url := c.apiURL + "/models/deployed-model-workers"
	var workers map[string]any
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// Deploy deploys a new model and waits until the deployment task
// finishes.
func (c *Client) Deploy(ctx context.Context, attrs DeployRequest) (json.RawMessage, error) {
	url := c.apiURL + "/models/deploy"
	var submitted taskSubmission
	if err := c.doJSON(ctx, http.MethodPost, url, attrs, &submitted); err != nil {
		return nil, err
	}
	return c.waitForTask(ctx, submitted.TaskID, c.maxAttempts, deployPollInterval)
}

// Remove undeploys a model and waits until the removal task finishes.
func (c *Client) Remove(ctx context.Context, modelID string) (json.RawMessage, error) {
	url := c.apiURL + "/models/remove/" + modelID
	var submitted taskSubmission
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, &submitted); err != nil {
		return nil, err
	}
	return c.waitForTask(ctx, submitted.TaskID, c.maxAttempts, c.pollInterval)
}

// Update changes the mutable attributes of a deployed model.
func (c *Client) Update(ctx context.Context, modelID string, attrs UpdateRequest) (map[string]any, error) {
	url := c.apiURL + "/models/update/" + modelID
	var result map[string]any
	if err := c.doJSON(ctx, http.MethodPatch, url, attrs, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AddWorker scales a model up by count workers.
func (c *Client) AddWorker(ctx context.Context, modelID string, count int) (json.RawMessage, error) {
	return c.scaleWorkers(ctx, modelID, "add_worker", count)
}

// RemoveWorker scales a model down by count workers.
func (c *Client) RemoveWorker(ctx context.Context, modelID string, count int) (json.RawMessage, error) {
	return c.scaleWorkers(ctx, modelID, "remove_worker", count)
}

func (c *Client) scaleWorkers(ctx context.Context, modelID, op string, count int) (json.RawMessage, error) {
	if count < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", count)
	}
	url := fmt.Sprintf("%s/models/%s/%s/%s", c.apiURL, modelID, op, strconv.Itoa(count))
	var submitted taskSubmission
	if err := c.doJSON(ctx, http.MethodPatch, url, nil, &submitted); err != nil {
		return nil, err
	}
	return c.waitForTask(ctx, submitted.TaskID, c.maxAttempts, c.pollInterval)
}

// ModelsInDeployment returns the models whose deployment tasks are
// currently running, mapped to their model type.
func (c *Client) ModelsInDeployment(ctx context.Context) (map[string]string, error) {
	url := c.apiURL + "/models/task"

	// worker -> queue -> running tasks
	var running map[string]map[string][]deployTask
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &running); err != nil {
		return nil, err
	}

	inDeployment := make(map[string]string)
	for _, queues := range running {
		for _, tasks := range queues {
			for _, task := range tasks {
				if task.Name != "tasks.tasks.deploy_task" || len(task.Args) == 0 {
					continue
				}
				inDeployment[task.Args[0].ModelName] = task.Args[0].ModelType
			}
		}
	}
	return inDeployment, nil
}

// DeployIfAbsent deploys the base model named in skillArgs unless it is
// already deployed or a deployment for it is running. A missing
// base_model is a no-op.
func (c *Client) DeployIfAbsent(ctx context.Context, skillArgs map[string]any) error {
	modelName, _ := skillArgs["base_model"].(string)
	if modelName == "" {
		c.logger.Info("no base_model in the skill args, nothing to deploy")
		return nil
	}
	modelType := "transformer"
	if _, ok := skillArgs["adapter"]; ok {
		modelType = "adapter"
	}
	logger := c.logger.With(zap.String("model", modelName), zap.String("type", modelType))

	deployed, err := c.DeployedModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range deployed {
		if m.ModelName == modelName && m.ModelType == modelType {
			logger.Info("model is already deployed")
			return nil
		}
	}

	inDeployment, err := c.ModelsInDeployment(ctx)
	if err != nil {
		return err
	}
	if inDeployment[modelName] == modelType {
		logger.Info("model deployment is already running")
		return nil
	}

	logger.Info("model is not deployed, starting deployment")
	_, err = c.Deploy(ctx, DeployRequest{
		Identifier: modelName,
		ModelName:  modelName,
		ModelType:  modelType,
	})
	return err
}

// taskSubmission is the immediate reply to an asynchronous operation.
type taskSubmission struct {
	TaskID string `json:"task_id"`
}

// deployTask is one entry of the running-task listing.
type deployTask struct {
	Name string `json:"name"`
	Args []struct {
		ModelName string `json:"MODEL_NAME"`
		ModelType string `json:"MODEL_TYPE"`
	} `json:"args"`
}

// taskResult is the reply of the task-result endpoint once a task has
// finished.
type taskResult struct {
	Result json.RawMessage `json:"result"`
}

// waitForTask polls the task-result endpoint until the task finishes
// or the attempts are exhausted.
func (c *Client) waitForTask(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (json.RawMessage, error) {
	if taskID == "" {
		return nil, fmt.Errorf("model API returned no task id")
	}
	url := c.apiURL + "/main/task_result/" + taskID

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.logger.Debug("polling task result",
			zap.String("task", taskID), zap.Int("attempt", attempt))

		resp, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read task result: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			var result taskResult
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("parse task result: %w", err)
			}
			return result.Result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskTimeout)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.hc.Do(req)
}

// doJSON performs a JSON request and decodes a successful response
// into out. Non-2xx responses become an *APIError.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response from %s: %w", url, err)
	}
	return nil
}
