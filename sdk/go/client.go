package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   int64
	BearerToken string
	ActorID     int64
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, projectID int64) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID         int64  `json:"id"`
	ProjectID  int64  `json:"project_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	EndDate    string `json:"end_date,omitempty"`
	Milestone  bool   `json:"milestone,omitempty"`
	AssigneeID *int64 `json:"assignee_id,omitempty"`
}

// Project represents the API project model (partial).
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Methodology string `json:"methodology"`
	CreatorID   int64  `json:"creator_id"`
}

// AssistantResponse is what the assistant returns for a chat turn. When Type
// is "command", CommandData must be sent back via ExecuteCommand to apply it.
type AssistantResponse struct {
	Type                 string          `json:"type"`
	Message              string          `json:"message"`
	CommandData          json.RawMessage `json:"command_data,omitempty"`
	RequiresConfirmation bool            `json:"requires_confirmation,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  int64  `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    int64  `json:"actor_id"`
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
func (c *Client) CreateTask(ctx context.Context, title, priority string) (Task, error) {
	body := map[string]any{"title": title}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), body, &resp)
	return resp, err
}

// ListTasks lists tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := c.projectPath("tasks")
	if status != "" {
		endpoint += "?status=" + status
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetProject fetches the project.
func (c *Client) GetProject(ctx context.Context) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d", c.ProjectID), nil, &resp)
	return resp, err
}

// SendMessage sends one chat turn to the assistant.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string) (AssistantResponse, error) {
	body := map[string]any{
		"session_id": sessionID,
		"message":    message,
	}
	var resp AssistantResponse
	err := c.do(ctx, http.MethodPost, c.projectPath("assistant/message"), body, &resp)
	return resp, err
}

// ExecuteCommand confirms and runs a plan previously returned by SendMessage.
func (c *Client) ExecuteCommand(ctx context.Context, sessionID string, commandData json.RawMessage) (string, error) {
	body := map[string]any{
		"session_id":   sessionID,
		"command_data": commandData,
	}
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, c.projectPath("assistant/execute"), body, &resp)
	return resp.Message, err
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.projectPath("events")
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID > 0:
		req.Header.Set("X-Actor-Id", fmt.Sprint(c.ActorID))
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

func (c *Client) projectPath(p string) string {
	return fmt.Sprintf("v1/projects/%d/%s", c.ProjectID, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
