package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-gate/internal/infrastructure/config"
	"github.com/nerrad567/gray-gate/internal/mirror"
)

// defaultRetryAfter applies when a throttling response carries no usable
// Retry-After header.
const defaultRetryAfter = 30 * time.Second

// maxResponseSize bounds controller response bodies (8 MB).
const maxResponseSize = 8 * 1024 * 1024

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client fetches configuration collections from the remote network
// controller's REST API and pushes local mutations back.
//
// Failures are classified with the mirror package's error taxonomy so the
// reconciliation coordinator can pick the right recovery: auth failures
// abort the cycle, unsupported collections go quiet permanently, throttle
// responses reschedule, and anything else is transient.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	site    string
	logger  Logger
}

// New creates a controller client from configuration.
func New(cfg config.ControllerConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLS && !cfg.VerifyTLS {
		// Self-signed appliance certificates are the norm on local
		// controllers; verification stays available via config.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.GetTimeout(),
			Transport: transport,
		},
		baseURL: cfg.BaseURL(),
		apiKey:  cfg.APIKey,
		site:    cfg.Site,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Fetch retrieves all records of one collection. The path is the REST
// resource name from the type catalog (e.g. "portforward").
func (c *Client) Fetch(ctx context.Context, path string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/api/s/%s/rest/%s", c.baseURL, c.site, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("controller: building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("controller: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, fmt.Errorf("controller: fetch %s: %w", path, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("controller: reading %s response: %w", path, err)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("controller: decoding %s response: %w", path, err)
	}

	c.logger.Debug("collection fetched", "path", path, "records", len(records))
	return records, nil
}

// Apply pushes a partial update for one record of a collection. The patch
// is merged server-side onto the existing record.
func (c *Client) Apply(ctx context.Context, path, id string, patch map[string]any) error {
	url := fmt.Sprintf("%s/api/s/%s/rest/%s/%s", c.baseURL, c.site, path, id)

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("controller: marshalling patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("controller: building request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controller: apply %s/%s: %w", path, id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if err := classifyStatus(resp); err != nil {
		return fmt.Errorf("controller: apply %s/%s: %w", path, id, err)
	}

	c.logger.Info("mutation applied", "path", path, "id", id)
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// classifyStatus maps HTTP status codes onto the mirror error taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return mirror.ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return mirror.ErrUnsupported
	case resp.StatusCode == http.StatusTooManyRequests:
		return &mirror.ThrottledError{RetryAfter: retryAfter(resp)}
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// retryAfter extracts the server-mandated wait from a 429 response.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return defaultRetryAfter
}

// decodeRecords accepts both response shapes the controller produces: a
// bare JSON array and the envelope form {"data": [...]}.
func decodeRecords(body []byte) ([]map[string]any, error) {
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}
