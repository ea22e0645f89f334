package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/models"
	"github.com/jghoshh/taskvibe/backend/notifications"
	"github.com/zalando/go-keyring"
)

// KeyringService is the name of the service in the system keyring where the access
// and refresh tokens are stored.
const KeyringService = "TaskVibe"

// ErrNotLoggedIn is returned by calls that need a token when none is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Field   string
}

// Error returns the server's message, with the offending field when there is one.
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Field)
	}
	return e.Message
}

type tokenResult struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

// APIClient talks to the TaskVibe REST API on behalf of the shell.
type APIClient struct {
	serverURL  string
	httpClient *http.Client
	tokenKey   string
	refreshKey string
}

// NewAPIClient creates a client for serverURL that keeps its tokens in the keyring
// entries tokenKey and refreshKey.
func NewAPIClient(serverURL, tokenKey, refreshKey string) *APIClient {
	return &APIClient{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokenKey:   tokenKey,
		refreshKey: refreshKey,
	}
}

func (c *APIClient) storedToken(key string) (string, error) {
	token, err := keyring.Get(KeyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("failed to access keyring: %w", err)
	}
	return token, nil
}

// saveTokens stores both tokens, leaving neither behind if the second write fails.
func (c *APIClient) saveTokens(token, refreshToken string) error {
	if err := keyring.Set(KeyringService, c.tokenKey, token); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := keyring.Set(KeyringService, c.refreshKey, refreshToken); err != nil {
		keyring.Delete(KeyringService, c.tokenKey)
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// ClearKeyring removes both tokens. Missing entries are not an error.
func (c *APIClient) ClearKeyring() error {
	for _, key := range []string{c.tokenKey, c.refreshKey} {
		if err := keyring.Delete(KeyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring: %w", err)
		}
	}
	return nil
}

// IsLoggedIn reports whether an access token is stored.
func (c *APIClient) IsLoggedIn() bool {
	_, err := c.storedToken(c.tokenKey)
	return err == nil
}

func (c *APIClient) send(method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var payload struct {
			Message string `json:"message"`
			Field   string `json:"field"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Message != "" {
			apiErr.Message, apiErr.Field = payload.Message, payload.Field
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends an authenticated request. An expired access token is refreshed once and
// the request retried.
func (c *APIClient) do(method, path string, body, out interface{}) error {
	token, err := c.storedToken(c.tokenKey)
	if err != nil {
		return err
	}

	err = c.send(method, path, token, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}

	if token, err = c.refresh(); err != nil {
		return err
	}
	return c.send(method, path, token, body, out)
}

func (c *APIClient) refresh() (string, error) {
	refreshToken, err := c.storedToken(c.refreshKey)
	if err != nil {
		return "", err
	}
	var result tokenResult
	if err := c.send(http.MethodPost, "/api/refresh", "", map[string]string{"refreshToken": refreshToken}, &result); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.ClearKeyring()
			return "", ErrNotLoggedIn
		}
		return "", err
	}
	if err := c.saveTokens(result.Token, result.RefreshToken); err != nil {
		return "", err
	}
	return result.Token, nil
}

// Login signs in to the offline account and stores the tokens.
func (c *APIClient) Login(passphrase string) (*models.User, error) {
	var result tokenResult
	if err := c.send(http.MethodPost, "/api/login", "", map[string]string{"passphrase": passphrase}, &result); err != nil {
		return nil, err
	}
	if err := c.saveTokens(result.Token, result.RefreshToken); err != nil {
		return nil, err
	}
	return result.User, nil
}

// Logout tells the server and forgets the stored tokens.
func (c *APIClient) Logout() error {
	if err := c.send(http.MethodPost, "/api/logout", "", nil, nil); err != nil {
		return err
	}
	return c.ClearKeyring()
}

// User fetches the signed-in user.
func (c *APIClient) User() (*models.User, error) {
	var user models.User
	if err := c.do(http.MethodGet, "/api/auth/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateTheme stores the user's display theme.
func (c *APIClient) UpdateTheme(theme models.Theme) (*models.User, error) {
	var user models.User
	if err := c.do(http.MethodPatch, "/api/user/theme", map[string]models.Theme{"theme": theme}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CompleteOnboarding saves the onboarding choices.
func (c *APIClient) CompleteOnboarding(in engine.OnboardingInput) (*models.User, error) {
	var user models.User
	if err := c.do(http.MethodPatch, "/api/user/onboarding", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListTasks returns active or completed tasks in display order.
func (c *APIClient) ListTasks(completed bool) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(http.MethodGet, "/api/tasks?completed="+strconv.FormatBool(completed), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a task.
func (c *APIClient) CreateTask(in engine.CreateTaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(http.MethodPost, "/api/tasks", in, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial edit to the task with the given id.
func (c *APIClient) UpdateTask(id string, patch engine.TaskPatch) (*models.Task, error) {
	var task models.Task
	if err := c.do(http.MethodPatch, "/api/tasks/"+id, patch, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the task with the given id.
func (c *APIClient) DeleteTask(id string) error {
	return c.do(http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// CompleteTask completes a task and reports the XP and level change.
func (c *APIClient) CompleteTask(id string) (*engine.CompleteResult, error) {
	var result engine.CompleteResult
	if err := c.do(http.MethodPost, "/api/tasks/"+id+"/complete", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UncompleteTask moves a completed task back to the active list.
func (c *APIClient) UncompleteTask(id string) (*engine.CompleteResult, error) {
	var result engine.CompleteResult
	if err := c.do(http.MethodPost, "/api/tasks/"+id+"/uncomplete", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats returns the dashboard summary.
func (c *APIClient) Stats() (*engine.UserStats, error) {
	var stats engine.UserStats
	if err := c.do(http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DailyStats returns the per-day rows of the last days.
func (c *APIClient) DailyStats(days int) ([]models.DailyStat, error) {
	var rows []models.DailyStat
	if err := c.do(http.MethodGet, "/api/stats/daily?days="+strconv.Itoa(days), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Achievements returns every unlocked achievement, newest first.
func (c *APIClient) Achievements() ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := c.do(http.MethodGet, "/api/achievements", nil, &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

// Notifications drains the user's pending toasts.
func (c *APIClient) Notifications() ([]notifications.Toast, error) {
	var toasts []notifications.Toast
	if err := c.do(http.MethodGet, "/api/notifications", nil, &toasts); err != nil {
		return nil, err
	}
	return toasts, nil
}
