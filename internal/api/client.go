// Package api is the HTTP client for the dashboard backend.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dicklesworthstone/opsdash/internal/model"
)

// StatusError is returned when the backend answers with a non-2xx status.
// Message holds the body's "message" field only; Detail holds "error".
type StatusError struct {
	Code    int
	Message string
	Detail  string
}

func (e *StatusError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	case e.Detail != "":
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Detail)
	default:
		return fmt.Sprintf("backend returned %d", e.Code)
	}
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks to a single backend origin.
type Client struct {
	baseURL string
	http    *http.Client
}

// Options tune the underlying transport.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func NewClient(baseURL string, opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // backend ships a self-signed cert
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the backend origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Login posts credentials. A nil error means the session was established.
// A 2xx answer that is not a JSON object is an error, not a login.
func (c *Client) Login(ctx context.Context, creds model.Credentials) error {
	body, err := c.postJSON(ctx, "/api/login", creds)
	if err != nil {
		return err
	}
	var lb statusBody
	if err := json.Unmarshal(body, &lb); err != nil {
		return fmt.Errorf("decode /api/login: %w", err)
	}
	return nil
}

// Logout notifies the backend; the response body is ignored.
func (c *Client) Logout(ctx context.Context, username string) error {
	_, err := c.postJSON(ctx, "/api/logout", struct {
		Username string `json:"username"`
	}{username})
	return err
}

func (c *Client) SystemStats(ctx context.Context) (model.SystemStats, error) {
	var out model.SystemStats
	err := c.getJSON(ctx, "/api/system_stats", &out)
	return out, err
}

func (c *Client) CurrentUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := c.getJSON(ctx, "/api/current_users", &out)
	return out, err
}

func (c *Client) Processes(ctx context.Context) ([]model.Process, error) {
	var out []model.Process
	err := c.getJSON(ctx, "/api/processes", &out)
	return out, err
}

func (c *Client) SystemLogs(ctx context.Context) ([]model.LogEntry, error) {
	var out []model.LogEntry
	err := c.getJSON(ctx, "/api/system_logs", &out)
	return out, err
}

func (c *Client) LastLoggedUsers(ctx context.Context) ([]model.LastLogin, error) {
	var out []model.LastLogin
	err := c.getJSON(ctx, "/api/last_logged_users", &out)
	return out, err
}

func (c *Client) Uptime(ctx context.Context) (model.Uptime, error) {
	var out model.Uptime
	err := c.getJSON(ctx, "/api/system_uptime", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in any) ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb statusBody
		if err := json.Unmarshal(body, &eb); err != nil {
			return nil, &StatusError{Code: resp.StatusCode}
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: eb.Message, Detail: eb.Error}
	}
	return body, nil
}
