package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TaskRunner is the external multi-agent orchestrator consumed as a black
// box: it accepts a task key and a prompt and returns the task output text.
type TaskRunner interface {
	Run(ctx context.Context, taskKey, prompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// crewRunRequest is the request format of the crew runner's /tasks/run API.
type crewRunRequest struct {
	TaskKey string `json:"task_key"`
	Prompt  string `json:"prompt"`
}

// crewRunResponse is the crew runner's response envelope.
type crewRunResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// CrewClient talks HTTP to the crew task-runner service.
type CrewClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCrewClient creates a crew runner client. The timeout bounds each task
// execution round trip; on expiry the pipeline takes the degraded path.
func NewCrewClient(baseURL string, timeout time.Duration) *CrewClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CrewClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Run executes a single task and returns its text output. Failures are
// wrapped as *TaskExecutionError.
func (c *CrewClient) Run(ctx context.Context, taskKey, prompt string) (string, error) {
	reqBody := crewRunRequest{
		TaskKey: taskKey,
		Prompt:  prompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/tasks/run", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("failed to reach task runner: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("task runner returned status %d: %s", resp.StatusCode, string(body))}
	}

	var runResp crewRunResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if runResp.Error != "" {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("%s", runResp.Error)}
	}
	if runResp.Result == "" {
		return "", &TaskExecutionError{TaskKey: taskKey, Err: fmt.Errorf("empty result from task runner")}
	}

	return runResp.Result, nil
}

// HealthCheck verifies the task runner is reachable.
func (c *CrewClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("task runner not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("task runner returned status %d", resp.StatusCode)
	}

	return nil
}
