// Package httpclient implements the worker's REST client to the coordinator, grounded on the
// teacher's cmd/xg2g-soak/client.go SessionClient (30s timeout) and worker.py's requests calls.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spacesaver/coordinator/internal/model"
)

// Client talks to the coordinator's HTTP API on behalf of a worker.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client with the 30s timeout spec §5 requires for ordinary coordination calls.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// cancelPollClient is used only for the mid-copy/mid-encode cancellation poll, which spec §5
// gives a tighter 10s timeout so a hung coordinator does not stall the copy-with-cancel loop.
func (c *Client) cancelPollClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// ClaimRequest mirrors api.claimRequestBody.
type ClaimRequest struct {
	WorkerID        string             `json:"workerId"`
	WorkerName      string             `json:"workerName"`
	WorkWindows     []model.WorkWindow `json:"workWindows"`
	WithinWorkHours bool               `json:"withinWorkHours"`
}

// ClaimResponse mirrors api.claimResponseBody.
type ClaimResponse struct {
	HasWork bool        `json:"hasWork"`
	Job     *model.Job  `json:"job,omitempty"`
	Item    *model.Item `json:"item,omitempty"`
	Args    string      `json:"args,omitempty"`
}

func (c *Client) Claim(ctx context.Context, req ClaimRequest) (ClaimResponse, error) {
	var resp ClaimResponse
	err := c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/claim", req, &resp)
	return resp, err
}

func (c *Client) StartJob(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/"+jobID+"/start", nil, nil)
}

// Heartbeat posts to /jobs/{id}/heartbeat, which refreshes the heartbeat of the worker that owns
// the job: the same liveness record WorkerHeartbeat refreshes, reached through the job id.
func (c *Client) Heartbeat(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/"+jobID+"/heartbeat", nil, nil)
}

// WorkerHeartbeat marks workerID as online, matching api.handleWorkerHeartbeat.
func (c *Client) WorkerHeartbeat(ctx context.Context, workerID string) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/workers/"+workerID+"/heartbeat", nil, nil)
}

type ProgressRequest struct {
	Pct     float64 `json:"pct"`
	ETASec  int64   `json:"etaSec"`
	LogTail string  `json:"logTail"`
}

func (c *Client) ReportProgress(ctx context.Context, jobID string, req ProgressRequest) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/"+jobID+"/progress", req, nil)
}

type CompleteRequest struct {
	NewPath      string           `json:"newPath"`
	NewSizeBytes int64            `json:"newSizeBytes"`
	NewMtimeSec  int64            `json:"newMtimeSec"`
	NewProbe     model.MediaProbe `json:"newProbe"`
}

func (c *Client) Complete(ctx context.Context, jobID string, req CompleteRequest) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/"+jobID+"/complete", req, nil)
}

type FailRequest struct {
	Reason string `json:"reason"`
}

func (c *Client) Fail(ctx context.Context, jobID string, req FailRequest) error {
	return c.doJSON(ctx, c.HTTP, http.MethodPost, "/jobs/"+jobID+"/fail", req, nil)
}

// IsCancelRequested polls the job's current record and reports its cancelRequested flag, using
// the tighter-timeout client since it is called frequently from inside the copy/encode loop.
func (c *Client) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	var job model.Job
	err := c.doJSON(ctx, c.cancelPollClient(), http.MethodGet, "/jobs/"+jobID, nil, &job)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
