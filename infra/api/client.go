// Package api implements the price predictor over its HTTP JSON interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/carprice/core/logger"
	"github.com/kilianp07/carprice/core/model"
	"github.com/kilianp07/carprice/core/prediction"
)

// Endpoint paths relative to the base URL.
const (
	PathBrands       = "/api/brands"
	PathPredict      = "/api/predict"
	PathPredictBatch = "/api/predict_batch"
	PathHealth       = "/health"

	// HeaderRequestID carries the request identifier.
	HeaderRequestID = "X-Request-ID"

	DefaultTimeout = 15 * time.Second

	maxErrorBody = 4 << 10
)

// Client talks to the predictor service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

var (
	_ prediction.Predictor      = (*Client)(nil)
	_ prediction.BatchPredictor = (*Client)(nil)
	_ prediction.HealthChecker  = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client for the service rooted at baseURL. An empty
// baseURL issues same-origin relative paths, which only works behind a proxy
// that rewrites them.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logger.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchCatalog reads the option catalog.
func (c *Client) FetchCatalog(ctx context.Context) (prediction.CatalogResponse, error) {
	var out prediction.CatalogResponse
	if err := c.do(ctx, http.MethodGet, PathBrands, nil, &out); err != nil {
		return prediction.CatalogResponse{}, err
	}
	return out, nil
}

// Predict prices one vehicle. A 4xx carrying {"success":false,"error":...}
// is returned as a *prediction.StatusError whose Message is that error.
func (c *Client) Predict(ctx context.Context, q model.VehicleQuery) (prediction.Response, error) {
	var out prediction.Response
	if err := c.do(ctx, http.MethodPost, PathPredict, q, &out); err != nil {
		return prediction.Response{}, err
	}
	return out, nil
}

type batchRequest struct {
	Vehicles []model.VehicleQuery `json:"vehicles"`
}

// PredictBatch prices several vehicles in one request.
func (c *Client) PredictBatch(ctx context.Context, qs []model.VehicleQuery) (prediction.BatchResponse, error) {
	var out prediction.BatchResponse
	if qs == nil {
		qs = []model.VehicleQuery{}
	}
	if err := c.do(ctx, http.MethodPost, PathPredictBatch, batchRequest{Vehicles: qs}, &out); err != nil {
		return prediction.BatchResponse{}, err
	}
	return out, nil
}

// Health queries the readiness endpoint. An unhealthy service answering 500
// is reported through the returned Health, not as an error.
func (c *Client) Health(ctx context.Context) (prediction.Health, error) {
	var out prediction.Health
	err := c.do(ctx, http.MethodGet, PathHealth, nil, &out)
	var se *prediction.StatusError
	if errors.As(err, &se) {
		return prediction.Health{Healthy: false, Error: se.Message}, nil
	}
	if err != nil {
		return prediction.Health{}, err
	}
	return out, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	id, ok := prediction.RequestIDFromContext(ctx)
	if !ok {
		id = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, id)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnf("%s %s failed: %v", method, path, err)
		return &prediction.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.log.Debugw("predictor call", map[string]any{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"request_id": id,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		if jerr := json.Unmarshal(payload, &eb); jerr != nil {
			eb.Error = ""
		}
		return &prediction.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(eb.Error)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
