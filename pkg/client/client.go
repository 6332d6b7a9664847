// Package client is a Go client for the trinodbc HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Params are the connection parameters sent when opening a connection.
type Params struct {
	Engine            string            `json:"engine,omitempty"`
	Host              string            `json:"host,omitempty"`
	Port              int               `json:"port,omitempty"`
	User              string            `json:"user,omitempty"`
	Password          string            `json:"password,omitempty"`
	Catalog           string            `json:"catalog,omitempty"`
	Schema            string            `json:"schema,omitempty"`
	HTTPScheme        string            `json:"http_scheme,omitempty"`
	Verify            *bool             `json:"verify,omitempty"`
	SessionProperties map[string]string `json:"session_properties,omitempty"`
}

// Column describes one result column.
type Column struct {
	Name         string `json:"name"`
	TypeCode     any    `json:"type_code"`
	DisplaySize  *int64 `json:"display_size"`
	InternalSize *int64 `json:"internal_size"`
	Precision    *int64 `json:"precision"`
	Scale        *int64 `json:"scale"`
	NullOK       *bool  `json:"null_ok"`
}

// ExecuteResult is the response of Execute.
type ExecuteResult struct {
	Columns  []Column `json:"columns"`
	RowCount int64    `json:"rowcount"`
}

// FetchResult is one page of rows. Each row is a map[string]any when the
// statement described its columns and a []any otherwise.
type FetchResult struct {
	Rows    []any `json:"rows"`
	HasMore bool  `json:"has_more"`
}

// Status is the response of GET /status.
type Status struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

// APIError is returned for every non-successful response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to one trinodbc server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var resp Status
	if err := c.doRequest(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenConnection calls POST /connections and returns the connection handle.
func (c *Client) OpenConnection(ctx context.Context, params Params) (string, error) {
	var resp struct {
		ConnectionID string `json:"connection_id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/connections", params, &resp); err != nil {
		return "", err
	}
	return resp.ConnectionID, nil
}

// CloseConnection calls DELETE /connections/:id. It reports false when the
// server did not know the handle.
func (c *Client) CloseConnection(ctx context.Context, connID string) (bool, error) {
	return c.closeHandle(ctx, "/connections/"+url.PathEscape(connID))
}

// OpenCursor calls POST /connections/:id/cursors and returns the cursor handle.
func (c *Client) OpenCursor(ctx context.Context, connID string) (string, error) {
	var resp struct {
		CursorID string `json:"cursor_id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/connections/"+url.PathEscape(connID)+"/cursors", nil, &resp); err != nil {
		return "", err
	}
	return resp.CursorID, nil
}

// CloseCursor calls DELETE /cursors/:id.
func (c *Client) CloseCursor(ctx context.Context, cursorID string) (bool, error) {
	return c.closeHandle(ctx, "/cursors/"+url.PathEscape(cursorID))
}

// ConnectionInfo calls GET /connections/:id/info. The password comes back masked.
func (c *Client) ConnectionInfo(ctx context.Context, connID string) (*Params, error) {
	var resp struct {
		Info Params `json:"info"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/connections/"+url.PathEscape(connID)+"/info", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Info, nil
}

// Execute calls POST /cursors/:id/execute. A nil params runs the statement
// without parameters.
func (c *Client) Execute(ctx context.Context, cursorID, query string, params []any) (*ExecuteResult, error) {
	body := map[string]any{"query": query}
	if params != nil {
		body["parameters"] = params
	}
	var resp ExecuteResult
	if err := c.doRequest(ctx, http.MethodPost, "/cursors/"+url.PathEscape(cursorID)+"/execute", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fetch calls GET /cursors/:id/fetch. maxRows <= 0 uses the server default.
func (c *Client) Fetch(ctx context.Context, cursorID string, maxRows int) (*FetchResult, error) {
	path := "/cursors/" + url.PathEscape(cursorID) + "/fetch"
	if maxRows > 0 {
		path += "?max_rows=" + strconv.Itoa(maxRows)
	}
	var resp FetchResult
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) closeHandle(ctx context.Context, path string) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	var rd io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(result); err != nil {
			return fmt.Errorf("decoding error: %w", err)
		}
	}
	return nil
}
