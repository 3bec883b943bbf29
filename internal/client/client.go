// Package client is a small HTTP client for the analysis jobs API, used by the admin CLI and by workers.
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
	"strconv"
	"strings"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL string       // Required: e.g. https://analysis.example.com
	HTTP    *http.Client // Optional: defaults to a client with a 30s timeout
	Token   string       // Optional: static bearer token, ignored when HTTP already authenticates
}

// Client calls the job API over HTTP.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error %d %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", base.Scheme)
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, http: hc, token: opts.Token}, nil
}

// Submit creates a job.
func (c *Client) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.SubmitJobResponse, error) {
	var out model.SubmitJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatusOptions tunes a status read.
type StatusOptions struct {
	Wait  time.Duration // long-poll up to this long while the job is pending
	Query string        // JMESPath projection applied to the result
}

// Status reads a job's status.
func (c *Client) Status(ctx context.Context, jobID string, opts StatusOptions) (*model.JobStatusView, error) {
	q := url.Values{}
	if opts.Wait > 0 {
		q.Set("wait", opts.Wait.String())
	}
	if opts.Query != "" {
		q.Set("query", opts.Query)
	}
	var out model.JobStatusView
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists a user's most recent jobs.
func (c *Client) History(ctx context.Context, userID string, limit int) (*model.JobHistoryResponse, error) {
	q := url.Values{"userId": {userID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out model.JobHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest posts a worker result.
func (c *Client) Ingest(ctx context.Context, req model.IngestResultRequest) (*model.IngestAck, error) {
	var out model.IngestAck
	if err := c.do(ctx, http.MethodPost, "/api/results", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	return apiErr
}
