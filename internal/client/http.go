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

	"github.com/jarvis-tasks/jarvis/internal/depgraph"
	"github.com/jarvis-tasks/jarvis/internal/model"
)

// HTTPClient implements TasksClient using the jarvis HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ TasksClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func taskPath(id string, rest ...string) string {
	p := "/v1/tasks/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func withActor(path, actor string) string {
	if actor == "" {
		return path
	}
	return path + "?actor=" + url.QueryEscape(actor)
}

// --- Tasks ---

func (c *HTTPClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if len(req.Labels) > 0 {
		q.Set("labels", strings.Join(req.Labels, ","))
	}
	for key, v := range map[string]string{
		"project_id": req.ProjectID,
		"priority":   req.Priority,
		"assignee":   req.Assignee,
		"search":     req.Search,
		"sort":       req.Sort,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	if req.Ready {
		q.Set("ready", "true")
	}
	if req.Blocked {
		q.Set("blocked", "true")
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	return c.listTasks(ctx, "/v1/tasks", q)
}

func (c *HTTPClient) Ready(ctx context.Context, projectID string, limit int) (*ListTasksResponse, error) {
	return c.listTasks(ctx, "/v1/ready", boardQuery(projectID, limit))
}

func (c *HTTPClient) Blocked(ctx context.Context, projectID string, limit int) (*ListTasksResponse, error) {
	return c.listTasks(ctx, "/v1/blocked", boardQuery(projectID, limit))
}

func boardQuery(projectID string, limit int) url.Values {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func (c *HTTPClient) listTasks(ctx context.Context, path string, q url.Values) (*ListTasksResponse, error) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListTasksResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPatch, taskPath(id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor(taskPath(id), actor), nil, nil)
}

// --- Dependencies ---

func (c *HTTPClient) AddDependency(ctx context.Context, taskID, dependsOnID, createdBy string) (*model.Dependency, error) {
	body := map[string]string{"depends_on_id": dependsOnID, "created_by": createdBy}
	var dep model.Dependency
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "dependencies"), body, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	path := taskPath(taskID, "dependencies", url.PathEscape(dependsOnID))
	return c.doJSON(ctx, http.MethodDelete, withActor(path, actor), nil, nil)
}

func (c *HTTPClient) GetDependencies(ctx context.Context, taskID string) (*DependencyInfo, error) {
	var info DependencyInfo
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "dependencies"), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) ValidateDependency(ctx context.Context, taskID, dependsOnID string) (*depgraph.Validation, error) {
	body := map[string]string{"depends_on_id": dependsOnID}
	var v depgraph.Validation
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "dependencies", "validate"), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) CheckTransition(ctx context.Context, taskID string, status model.Status) (*depgraph.TransitionCheck, error) {
	path := taskPath(taskID, "transition") + "?status=" + url.QueryEscape(string(status))
	var check depgraph.TransitionCheck
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// --- Labels ---

func (c *HTTPClient) AddLabel(ctx context.Context, taskID, label, actor string) (*model.Task, error) {
	body := map[string]string{"label": label, "actor": actor}
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "labels"), body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) RemoveLabel(ctx context.Context, taskID, label, actor string) error {
	path := taskPath(taskID, "labels", url.PathEscape(label))
	return c.doJSON(ctx, http.MethodDelete, withActor(path, actor), nil, nil)
}

func (c *HTTPClient) GetLabels(ctx context.Context, taskID string) ([]string, error) {
	var resp struct {
		Labels []string `json:"labels"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "labels"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// --- Comments and history ---

func (c *HTTPClient) AddComment(ctx context.Context, taskID, author, text string) (*model.Comment, error) {
	body := map[string]string{"author": author, "text": text}
	var comment model.Comment
	if err := c.doJSON(ctx, http.MethodPost, taskPath(taskID, "comments"), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) GetComments(ctx context.Context, taskID string) ([]*model.Comment, error) {
	var resp struct {
		Comments []*model.Comment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "comments"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID, "events"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Projects ---

func (c *HTTPClient) CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.Project, error) {
	var project model.Project
	if err := c.doJSON(ctx, http.MethodPost, "/v1/projects", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context) ([]*model.Project, error) {
	var resp struct {
		Projects []*model.Project `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *HTTPClient) DeleteProject(ctx context.Context, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, withActor("/v1/projects/"+url.PathEscape(id), actor), nil, nil)
}

// --- Board views ---

func (c *HTTPClient) Graph(ctx context.Context, limit int) (*model.GraphResponse, error) {
	path := "/v1/graph"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var graph model.GraphResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*model.BoardStats, error) {
	var stats model.BoardStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Refused status
// changes carry Reason and BlockingTasks; refused dependencies may carry
// the Cycle that would have been created.
type APIError struct {
	StatusCode    int
	Message       string
	Reason        string
	BlockingTasks []*depgraph.BlockingTask
	Cycle         []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	switch {
	case e.Reason != "":
		msg += ": " + e.Reason
	case len(e.Cycle) > 0:
		msg += ": " + strings.Join(e.Cycle, " -> ")
	}
	return msg
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error         string                   `json:"error"`
			Reason        string                   `json:"reason"`
			BlockingTasks []*depgraph.BlockingTask `json:"blocking_tasks"`
			Cycle         []string                 `json:"cycle"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode:    resp.StatusCode,
				Message:       errResp.Error,
				Reason:        errResp.Reason,
				BlockingTasks: errResp.BlockingTasks,
				Cycle:         errResp.Cycle,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
