package planlinesdk

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

// Client is a minimal Planline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	ActorID     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID           string  `json:"id"`
	StageID      *string `json:"stage_id,omitempty"`
	MacroStageID string  `json:"macrostage_id"`
	Name         string  `json:"name"`
	StartDate    *string `json:"start_date,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	Position     int     `json:"position"`
}

// MacroStage represents a schedule phase.
type MacroStage struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	Name          string  `json:"name"`
	Position      int     `json:"position"`
	StructureType *string `json:"structure_type,omitempty"`
	StartDate     *string `json:"start_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
}

// ShiftPlan previews a cascading shift.
type ShiftPlan struct {
	TaskID    string `json:"task_id"`
	DeltaDays int    `json:"delta_days"`
	Reference string `json:"reference"`
	Affected  []struct {
		Task     Task    `json:"task"`
		NewStart *string `json:"new_start,omitempty"`
		NewEnd   *string `json:"new_end,omitempty"`
	} `json:"affected"`
}

// TaskUpdate is the response to a task patch.
type TaskUpdate struct {
	Task      Task       `json:"task"`
	ShiftPlan *ShiftPlan `json:"shift_plan,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateMacroStage creates a macrostage in the client's project.
func (c *Client) CreateMacroStage(ctx context.Context, name string) (MacroStage, error) {
	var resp MacroStage
	err := c.do(ctx, http.MethodPost, c.projectPath("macrostages"), map[string]any{"name": name}, &resp)
	return resp, err
}

// CreateStageTask creates a task inside a stage.
func (c *Client) CreateStageTask(ctx context.Context, stageID, name, startDate, endDate string) (Task, error) {
	body := map[string]any{"name": name}
	if startDate != "" {
		body["start_date"] = startDate
	}
	if endDate != "" {
		body["end_date"] = endDate
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/stages/%s/tasks", url.PathEscape(stageID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateTask patches a task's name or dates. The response may carry a
// shift plan when the project cascades date moves.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch map[string]any) (TaskUpdate, error) {
	var resp TaskUpdate
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, patch, &resp)
	return resp, err
}

// ApplyShift executes a cascading shift previously planned.
func (c *Client) ApplyShift(ctx context.Context, taskID string, deltaDays int, reference string) ([]Task, error) {
	var resp struct {
		Shifted []Task `json:"shifted"`
	}
	endpoint := fmt.Sprintf("v0/tasks/%s/shift/apply", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"delta_days": deltaDays,
		"reference":  reference,
	}, &resp)
	return resp.Shifted, err
}

// Events returns recent events for the client's project.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events?project_id=" + url.QueryEscape(c.ProjectID)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
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
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
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
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
