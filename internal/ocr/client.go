package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicelens/invoicelens/internal/common"
)

// Job statuses reported by the text-detection service.
const (
	jobSucceeded  = "SUCCEEDED"
	jobFailed     = "FAILED"
	jobInProgress = "IN_PROGRESS"
)

// Config tunes the text-detection client.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration // default 2s
	MaxWait      time.Duration // default 90s; the poll loop never runs unbounded
}

// Client talks to an asynchronous document-text-detection API: submit a
// job for a stored document, then poll until a terminal status.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 90 * time.Second
	}
	return &Client{cfg: cfg, httpClient: httpClient, logger: logger}
}

// DetectText starts a detection job for key and polls it to completion.
// The loop is bounded by MaxWait; a job still in progress at the deadline
// yields a TIMEOUT error, which callers treat as a normal failure outcome.
func (c *Client) DetectText(ctx context.Context, key string) ([]string, error) {
	rid := uuid.New().String()
	start := time.Now()

	jobID, err := c.startJob(ctx, key)
	if err != nil {
		c.logger.Error("ocr.start_failed", "req_id", rid, "key", key, "error", err)
		return nil, err
	}
	c.logger.Info("ocr.job_started", "req_id", rid, "key", key, "job_id", jobID)

	deadline := time.Now().Add(c.cfg.MaxWait)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, lines, err := c.pollJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch status {
		case jobSucceeded:
			c.logger.Info("ocr.job_ok",
				"req_id", rid, "job_id", jobID,
				"lines", len(lines),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return lines, nil
		case jobFailed:
			return nil, common.APIError(fmt.Sprintf("text detection job %s failed", jobID), nil)
		}

		if time.Now().After(deadline) {
			c.logger.Warn("ocr.job_timeout",
				"req_id", rid, "job_id", jobID,
				"max_wait", c.cfg.MaxWait,
			)
			return nil, common.TimeoutError(fmt.Sprintf("text detection job %s still %s after %s", jobID, status, c.cfg.MaxWait), nil)
		}

		select {
		case <-ctx.Done():
			return nil, common.TimeoutError("text detection cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) startJob(ctx context.Context, key string) (string, error) {
	body, _ := json.Marshal(map[string]string{"document_key": key})
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/text-detection/jobs"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", common.APIError("start text detection", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode/100 != 2 {
		return "", common.APIError(fmt.Sprintf("start text detection: status %d", resp.StatusCode), nil)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", common.APIError("decode job response", err)
	}
	if out.JobID == "" {
		return "", common.APIError("no job_id in response", nil)
	}
	return out.JobID, nil
}

func (c *Client) pollJob(ctx context.Context, jobID string) (string, []string, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/text-detection/jobs/" + jobID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, common.APIError("poll text detection", err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode/100 != 2 {
		return "", nil, common.APIError(fmt.Sprintf("poll text detection: status %d", resp.StatusCode), nil)
	}

	var out struct {
		Status string   `json:"status"`
		Lines  []string `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, common.APIError("decode poll response", err)
	}
	return out.Status, out.Lines, nil
}

func closeBody(body io.ReadCloser, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("ocr.body_close_error", "error", err)
	}
}
