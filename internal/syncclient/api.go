package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/adanyl0v/taskdock/internal/models"
)

const defaultHTTPTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return fmt.Sprintf("%s (%d): %s", e.Message, e.StatusCode, strings.Join(parts, "; "))
}

type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthResult struct {
	User        Profile   `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// API is a thin client for the REST surface under /api/v1.
type API struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

func NewAPI(baseURL, token string) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}
	return &API{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

func (a *API) Token() string {
	return a.token
}

func (a *API) SetToken(token string) {
	a.token = token
}

// StreamURL is the websocket endpoint carrying the token as a query
// parameter, since browsers cannot set headers on upgrade requests.
func (a *API) StreamURL() string {
	u := *a.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/ws"
	q := url.Values{}
	if a.token != "" {
		q.Set("token", a.token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *API) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"name": name, "email": email, "password": password}
	err := a.do(ctx, http.MethodPost, "/auth/register", body, &out)
	if err != nil {
		return nil, err
	}
	a.token = out.AccessToken
	return &out, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	err := a.do(ctx, http.MethodPost, "/auth/login", body, &out)
	if err != nil {
		return nil, err
	}
	a.token = out.AccessToken
	return &out, nil
}

func (a *API) Me(ctx context.Context) (*Profile, error) {
	var out struct {
		User Profile `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/users/me", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (a *API) SearchUsers(ctx context.Context, query string) ([]models.UserSummary, error) {
	var out struct {
		Users []models.UserSummary `json:"users"`
	}
	path := "/users?search=" + url.QueryEscape(query)
	err := a.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (a *API) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	err := a.do(ctx, http.MethodGet, "/tasks", nil, &out)
	if err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (a *API) CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	var out struct {
		Task models.Task `json:"task"`
	}
	err := a.do(ctx, http.MethodPost, "/tasks", input, &out)
	if err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (a *API) UpdateTask(ctx context.Context, taskID string, patch models.TaskPatch) (*models.Task, error) {
	var out struct {
		Task models.Task `json:"task"`
	}
	err := a.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(taskID), patch, &out)
	if err != nil {
		return nil, err
	}
	return &out.Task, nil
}

func (a *API) DeleteTask(ctx context.Context, taskID string) error {
	return a.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL.String()+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(b, &body) == nil {
		if body.Error != "" {
			apiErr.Message = body.Error
		}
		apiErr.Fields = body.Fields
	}
	return apiErr
}
