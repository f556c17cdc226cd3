// Package client talks to the relay API on behalf of the panel and the device.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"relay-server/entities"
	"relay-server/usecases"
)

// APIError is a non-2xx response from the relay API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay api returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
}

// New returns a client for the API rooted at baseURL (e.g. http://host:3536).
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/") + "/api",
		apiKey:    apiKey,
		userAgent: "relay-client/1",
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient swaps the underlying http.Client, e.g. for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithUserAgent sets the User-Agent recorded with login events.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// SendCommand queues cmd for the device.
func (c *Client) SendCommand(ctx context.Context, cmd entities.Command) error {
	return c.do(ctx, http.MethodPost, "/command", cmd, nil)
}

// Claim takes the pending command; Type is "none" when there is nothing to do.
func (c *Client) Claim(ctx context.Context) (entities.Command, error) {
	var cmd entities.Command
	err := c.do(ctx, http.MethodGet, "/command", nil, &cmd)
	return cmd, err
}

// Report sends a device heartbeat.
func (c *Client) Report(ctx context.Context, report entities.StateReport) error {
	return c.do(ctx, http.MethodPost, "/status", report, nil)
}

func (c *Client) Status(ctx context.Context, includeErrors bool) (entities.StatusView, error) {
	var view entities.StatusView
	path := "/status"
	if includeErrors {
		path += "?includeErrors=true"
	}
	err := c.do(ctx, http.MethodGet, path, nil, &view)
	return view, err
}

func (c *Client) Errors(ctx context.Context) (entities.ErrorLog, error) {
	var log entities.ErrorLog
	err := c.do(ctx, http.MethodGet, "/debug", nil, &log)
	return log, err
}

// ClearErrors asks the device to empty its error log.
func (c *Client) ClearErrors(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/debug", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (usecases.StatsReport, error) {
	var report usecases.StatsReport
	err := c.do(ctx, http.MethodGet, "/stats", nil, &report)
	return report, err
}

// RecordLogin logs a panel session start.
func (c *Client) RecordLogin(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stats", map[string]string{"eventType": entities.EventLogin}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
