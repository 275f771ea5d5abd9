package nagsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal nag HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Completed        bool     `json:"completed"`
	Expired          bool     `json:"expired"`
	DueDate          *string  `json:"due_date,omitempty"`
	ReminderPhrases  []string `json:"reminder_phrases,omitempty"`
	RemainingSeconds int64    `json:"remaining_seconds"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

// Notification represents a queued reminder.
type Notification struct {
	ID        string  `json:"id"`
	Message   string  `json:"message"`
	TaskID    *string `json:"task_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// NotificationList is the queue plus the badge flag.
type NotificationList struct {
	Badge bool           `json:"badge"`
	Items []Notification `json:"items"`
}

// DetectResult is the outcome of task detection.
type DetectResult struct {
	Category string `json:"category"`
	Tasks    []Task `json:"tasks"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
}

// Status reports task counts and queue depth.
type Status struct {
	TaskCounts map[string]int `json:"task_counts"`
	Pending    int            `json:"pending_notifications"`
	Badge      bool           `json:"badge"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, text, category string) (Task, error) {
	body := map[string]any{"text": text}
	if category != "" {
		body["category"] = category
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// ListTasks returns all tasks; openOnly restricts to open ones.
func (c *Client) ListTasks(ctx context.Context, openOnly bool) ([]Task, error) {
	endpoint := "v0/tasks"
	if openOnly {
		endpoint += "?open=true"
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CompleteTask marks a task done (or reopens it with completed=false).
func (c *Client) CompleteTask(ctx context.Context, id string, completed bool) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/done", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"completed": completed}, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/tasks/"+url.PathEscape(id), nil, nil)
}

// DetectTasks sends free text through detection and returns the created tasks.
func (c *Client) DetectTasks(ctx context.Context, text string) (DetectResult, error) {
	var resp DetectResult
	err := c.do(ctx, http.MethodPost, "v0/tasks/detect", map[string]any{"text": text}, &resp)
	return resp, err
}

// Notifications returns the pending queue and badge state.
func (c *Client) Notifications(ctx context.Context) (NotificationList, error) {
	var resp NotificationList
	err := c.do(ctx, http.MethodGet, "v0/notifications", nil, &resp)
	return resp, err
}

// ClearNotifications empties the queue and clears the badge.
func (c *Client) ClearNotifications(ctx context.Context) (int64, error) {
	var resp struct {
		Cleared int64 `json:"cleared"`
	}
	err := c.do(ctx, http.MethodPost, "v0/notifications/clear", nil, &resp)
	return resp.Cleared, err
}

// Status returns tracker-wide counters.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, "v0/status", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
