// Package apiclient is a typed client for the task HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/s1natex/todo-master/internal/tasks"
)

// Summary kinds accepted by Client.Summary.
const (
	SummaryWeek  = "week"
	SummaryMonth = "month"
)

// APIError is a non-2xx response. Reason is the server's "error" field.
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Reason)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL, e.g. http://localhost:5000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListByDate(ctx context.Context, date string) ([]tasks.Task, error) {
	var out []tasks.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks?"+url.Values{"date": {date}}.Encode(), nil, &out)
	return out, err
}

// Summary lists tasks dated start..end inclusive. kind is SummaryWeek or SummaryMonth.
func (c *Client) Summary(ctx context.Context, kind, start, end string) ([]tasks.Task, error) {
	var out []tasks.Task
	q := url.Values{"start": {start}, "end": {end}}
	err := c.do(ctx, http.MethodGet, "/api/summary/"+kind+"?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, title, date string) (tasks.Task, error) {
	var out tasks.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", map[string]string{"title": title, "date": date}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, t tasks.Task) (tasks.Task, error) {
	var out tasks.Task
	err := c.do(ctx, http.MethodPut, "/api/tasks/"+strconv.FormatInt(t.ID, 10), t, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	var out struct {
		Success bool `json:"success"`
	}
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+strconv.FormatInt(id, 10), nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Reason = e.Error
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
