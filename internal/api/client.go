package api

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

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tgienger/tdc/internal/models"
)

const (
	// TodosPath is the collection endpoint
	TodosPath = "/api/todos"

	// ClearCompletedPath is the bulk-clear endpoint
	ClearCompletedPath = "/api/todos/clear-completed"

	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 4 << 20
)

// Client implements Service over HTTP+JSON
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	timeout    time.Duration
	logger     *log.Logger
	newID      func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (for testing)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sends the token as a bearer credential on every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds every request. Zero leaves the transport defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the request logger
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the Task API at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: missing host", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		logger:     log.New(io.Discard),
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token != "" {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *c.httpClient
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.httpClient = &authed
	}

	// Ensure the envelope schemas compile before the first request
	if _, err := loadSchemas(); err != nil {
		return nil, err
	}

	return c, nil
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListTasks fetches every task
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	env, err := c.do(ctx, http.MethodGet, TodosPath, nil, payloadList)
	if err != nil {
		return nil, err
	}
	if env.Todos == nil {
		return []models.Task{}, nil
	}
	return env.Todos, nil
}

// CreateTask creates a task with the given text
func (c *Client) CreateTask(ctx context.Context, text string) (models.Task, error) {
	body := struct {
		Text string `json:"text"`
	}{Text: text}

	env, err := c.do(ctx, http.MethodPost, TodosPath, body, payloadTodo)
	if err != nil {
		return models.Task{}, err
	}
	return *env.Todo, nil
}

// UpdateTask sends a partial update for one task
func (c *Client) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (models.Task, error) {
	env, err := c.do(ctx, http.MethodPut, taskPath(id), patch, payloadTodo)
	if err != nil {
		return models.Task{}, err
	}
	return *env.Todo, nil
}

// DeleteTask deletes one task
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, taskPath(id), nil, payloadNone)
	return err
}

// ClearCompleted deletes every completed task
func (c *Client) ClearCompleted(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, ClearCompletedPath, nil, payloadNone)
	return err
}

func taskPath(id int64) string {
	return TodosPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, kind payloadKind) (*envelope, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := c.newID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	c.logger.Debug("request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Debug("read response", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, wrapTransportError(err)
	}

	env, err := decodeEnvelope(data, resp.StatusCode, requestID, kind)
	if err != nil {
		c.logger.Debug("request unsuccessful",
			"method", method, "path", path, "status", resp.StatusCode,
			"request_id", requestID, "err", err)
		return nil, err
	}

	c.logger.Debug("response", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))
	return env, nil
}
