// Package backend is the REST client of the script backend: app metadata
// lookups, dependency installation, stopping apps and reading its config.
// Payloads are opaque JSON and are handed to callers as generic maps.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

// Defaults of Config.
const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 1
)

// Config configures a Client.
type Config struct {
	// BaseURL of the local backend, e.g. http://localhost:3000.
	BaseURL string
	// RemoteURL serves remote metadata lookups. Defaults to BaseURL, which
	// proxies them to the app database.
	RemoteURL string
	Timeout   time.Duration
	Retries   int
	Logger    *slog.Logger
}

// APIError is a non-2xx answer of the backend.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend answered %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend answered %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the local backend and the remote metadata service.
type Client struct {
	local  *resty.Client
	remote *resty.Client
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if cfg.RemoteURL == "" {
		cfg.RemoteURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		local:  newResty(cfg.BaseURL, cfg),
		remote: newResty(cfg.RemoteURL, cfg),
		logger: cfg.Logger.With("component", "backend"),
	}, nil
}

func newResty(baseURL string, cfg Config) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetTransport(&http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}).
		SetHeader("Accept", "application/json")
}

// Close releases idle connections of both clients.
func (c *Client) Close() error {
	lerr := c.local.Close()
	if rerr := c.remote.Close(); rerr != nil {
		return rerr
	}
	return lerr
}

// Lookup resolves the metadata of appID locally or remotely.
func (c *Client) Lookup(ctx context.Context, appID string, isLocal bool) (map[string]any, error) {
	if isLocal {
		return c.LocalMetadata(ctx, appID)
	}
	return c.RemoteMetadata(ctx, appID)
}

// LocalMetadata reads the metadata of a locally installed app.
func (c *Client) LocalMetadata(ctx context.Context, appID string) (map[string]any, error) {
	return c.getObject(ctx, c.local, "local metadata", "/local/search/{appId}", appID)
}

// RemoteMetadata reads the metadata of an app from the app database.
func (c *Client) RemoteMetadata(ctx context.Context, appID string) (map[string]any, error) {
	return c.getObject(ctx, c.remote, "remote metadata", "/db/search/{appId}", appID)
}

// Config reads the backend configuration.
func (c *Client) Config(ctx context.Context) (map[string]any, error) {
	return c.getObject(ctx, c.local, "config", "/config", "")
}

// StopApp asks the backend to kill the script of appID and returns its
// human readable answer.
func (c *Client) StopApp(ctx context.Context, appID string) (string, error) {
	resp, err := c.local.R().
		SetContext(ctx).
		SetPathParam("appId", appID).
		Get("/scripts/stop/{appId}")
	if err != nil {
		return "", fmt.Errorf("stop app %s: %w", appID, err)
	}
	if resp.IsError() {
		return "", &APIError{Op: "stop app", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return messageOf(resp.String()), nil
}

// InstallDependencies asks the backend to install deps for appID.
func (c *Client) InstallDependencies(ctx context.Context, appID string, deps []string) error {
	body := map[string]any{"appId": appID, "dependencies": deps}
	resp, err := c.local.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/deps/install")
	if err != nil {
		return fmt.Errorf("install dependencies %s: %w", appID, err)
	}
	if resp.IsError() {
		return &APIError{Op: "install dependencies", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	c.logger.Info("Dependency installation requested.", "appId", appID, "deps", deps)
	return nil
}

func (c *Client) getObject(ctx context.Context, rc *resty.Client, op, path, appID string) (map[string]any, error) {
	var out any
	req := rc.R().SetContext(ctx).SetResult(&out)
	if appID != "" {
		req.SetPathParam("appId", appID)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, appID, err)
	}
	if resp.IsError() {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	c.logger.Debug("Backend answered.", "op", op, "appId", appID, "status", resp.StatusCode(), "took", resp.Duration())
	switch v := out.(type) {
	case map[string]any:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%s %s: empty response", op, appID)
	default:
		return map[string]any{"data": v}, nil
	}
}

// messageOf extracts the message of a JSON answer, falling back to the raw
// text.
func messageOf(body string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return body
	}
	for _, key := range []string{"message", "content", "status"} {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return body
}
