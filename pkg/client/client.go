// Package client is a typed HTTP client for the SparkLab API.
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

	"github.com/google/uuid"
	"github.com/sparklab/sparklab-api/pkg/handlers"
	"github.com/sparklab/sparklab-api/pkg/services"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken replaces the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	if resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*handlers.AuthResponse, error) {
	var out handlers.AuthResponse
	body := handlers.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) Register(ctx context.Context, email, password string) (*handlers.AuthResponse, error) {
	var out handlers.AuthResponse
	body := handlers.RegisterRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) CreateGeneration(ctx context.Context, req handlers.CreateGenerationRequest) (*handlers.CreateGenerationResponse, error) {
	var out handlers.CreateGenerationResponse
	if err := c.do(ctx, http.MethodPost, "/api/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetGeneration(ctx context.Context, id uuid.UUID) (*handlers.GenerationResponse, error) {
	var out handlers.GenerationResponse
	if err := c.do(ctx, http.MethodGet, "/api/generations/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListGenerations(ctx context.Context, limit, offset int) (*handlers.ListGenerationsResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out handlers.ListGenerationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/generations?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*services.ProfileView, error) {
	var out services.ProfileView
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Upgrade(ctx context.Context) (*services.ProfileView, error) {
	var out services.ProfileView
	if err := c.do(ctx, http.MethodPost, "/api/profile/upgrade", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Engines(ctx context.Context) ([]services.EngineView, error) {
	var out struct {
		Engines []services.EngineView `json:"engines"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/engines", nil, &out); err != nil {
		return nil, err
	}
	return out.Engines, nil
}

func (c *Client) ConnectEngine(ctx context.Context, engineKey, status string) (*handlers.EngineConnectionResponse, error) {
	var out handlers.EngineConnectionResponse
	body := handlers.EngineConnectionRequest{EngineKey: engineKey, Status: status}
	if err := c.do(ctx, http.MethodPost, "/api/engine-connections", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
