// Package client is a thin wrapper over the TaskFlow REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/model"
)

const DefaultBaseURL = "http://localhost:5000/api"

// APIError is a non-2xx response. Message is the server's error field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type AuthResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
}

// Register creates an account and adopts the returned token.
func (c *Client) Register(ctx context.Context, email, password, name string) (AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.token = resp.Token
	return resp, nil
}

// Login authenticates and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.token = resp.Token
	return resp, nil
}

func (c *Client) ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Query != "" {
		query.Set("q", filter.Query)
	}
	if filter.Tag != "" {
		query.Set("tag", filter.Tag)
	}
	path := "/tasks"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var list []model.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// TaskFields is the JSON body for create and update. Nil fields are omitted.
type TaskFields struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, fields TaskFields) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", fields, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, fields TaskFields) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), fields, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		message := "API request failed"
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			message = errBody.Error
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
