// Package engine talks to the external workflow execution engine that runs
// video-processing jobs. Only the submit/status/terminate contract is
// consumed here; the engine itself is an external collaborator.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"capture-service/internal/config"
)

const (
	startPath     = "/v1/workflow_execution/start"
	getPath       = "/v1/workflow_execution/get"
	terminatePath = "/v1/workflow_execution/terminate"

	maxErrorBodyBytes = 2048
)

// RunState is the engine's view of one run.
type RunState struct {
	Status         string
	ResultLocation string
}

// SubmitRequest carries everything the engine needs to start a run.
// Parameters are opaque and passed through untouched.
type SubmitRequest struct {
	VideoPath  string
	Parameters string
}

// Client is the consumed engine contract. A transport or HTTP-level failure
// means the engine was unreachable and the operation may be retried; an
// engine-reported failure status arrives through RunState instead.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*RunState, error)
	Cancel(ctx context.Context, runID string) error
}

// HTTPClient implements Client against the engine's JSON API.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	workflowName string
	taskList     string
	http         *http.Client
	syncHTTP     *http.Client
}

func NewHTTPClient(cfg *config.EngineConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		workflowName: cfg.WorkflowName,
		taskList:     cfg.TaskList,
		http:         &http.Client{Timeout: cfg.Timeout},
		// Status sync is polled; keep it on a short leash so callers can
		// retry on their own schedule.
		syncHTTP: &http.Client{Timeout: cfg.SyncTimeout},
	}
}

type startRequest struct {
	WorkflowName string      `json:"workflowName"`
	Input        engineInput `json:"input"`
	TaskList     string      `json:"taskList"`
}

type engineInput struct {
	VideoPath  string `json:"videoPath"`
	Parameters string `json:"parameters,omitempty"`
}

type startResponse struct {
	RunID string `json:"runId"`
}

type runRequest struct {
	RunID string `json:"runId"`
}

type statusResponse struct {
	Status         string `json:"status"`
	State          string `json:"state"`
	ResultLocation string `json:"resultLocation"`
	WorkflowExecution *struct {
		Status string `json:"status"`
		State  string `json:"state"`
	} `json:"workflowExecution"`
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload := startRequest{
		WorkflowName: c.workflowName,
		Input: engineInput{
			VideoPath:  req.VideoPath,
			Parameters: req.Parameters,
		},
		TaskList: c.taskList,
	}

	var resp startResponse
	if err := c.post(ctx, c.http, startPath, payload, &resp); err != nil {
		return "", err
	}

	if resp.RunID == "" {
		return "", fmt.Errorf("engine start response missing runId")
	}

	return resp.RunID, nil
}

func (c *HTTPClient) GetStatus(ctx context.Context, runID string) (*RunState, error) {
	var resp statusResponse
	if err := c.post(ctx, c.syncHTTP, getPath, runRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}

	status := firstNonEmpty(resp.Status, resp.State)
	if status == "" && resp.WorkflowExecution != nil {
		status = firstNonEmpty(resp.WorkflowExecution.Status, resp.WorkflowExecution.State)
	}
	if status == "" {
		return nil, fmt.Errorf("engine status response carries no status field")
	}

	return &RunState{
		Status:         status,
		ResultLocation: resp.ResultLocation,
	}, nil
}

func (c *HTTPClient) Cancel(ctx context.Context, runID string) error {
	return c.post(ctx, c.http, terminatePath, runRequest{RunID: runID}, nil)
}

func (c *HTTPClient) post(ctx context.Context, client *http.Client, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("engine responded %d to %s: %s", resp.StatusCode, path, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine response is not valid JSON: %w", err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
