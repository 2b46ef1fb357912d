// Package client talks to a running ranking-api server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ahmethakanbesel/ranking-api/internal/job"
)

// Client wraps the /api/v1 job routes.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// SubmitInput is the body of a job submission.
type SubmitInput struct {
	Niche       string `json:"niche"`
	ItemCount   int    `json:"itemCount,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	AutoPublish bool   `json:"autoPublish"`
}

func (c *Client) Submit(ctx context.Context, in SubmitInput) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", in, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *Client) Get(ctx context.Context, id string) (*job.Snapshot, error) {
	var out job.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, status, niche string) ([]job.Snapshot, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if niche != "" {
		q.Set("niche", niche)
	}
	path := "/api/v1/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []job.Snapshot
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Wait polls job id every interval until it reaches a terminal state.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, onChange func(*job.Snapshot)) (*job.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		snap, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if key := string(snap.Status) + snap.Message; key != last && onChange != nil {
			onChange(snap)
			last = key
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope[json.RawMessage]
		if json.Unmarshal(respBody, &env) == nil && env.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if out == nil {
		return nil
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}
