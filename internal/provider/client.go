package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/syauqi01234-prog/url-scanner/internal/config"
	"github.com/syauqi01234-prog/url-scanner/internal/scan"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client talks to the scanning provider through its proxy base URL.
// Submissions go to POST /api/scan-url, status queries to
// GET /api/analyses/{id}. The client performs no retries of its own; retry
// decisions belong to the polling loop.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// New creates a provider Client from configuration.
func New(cfg config.ProviderConfig, logger *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// SubmitURL submits a URL for analysis and returns the analysis ID.
// The URL must be absolute (scheme and host); validation failures are
// reported before any network I/O happens.
func (c *Client) SubmitURL(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scan request: %w", err)
	}

	var decoded submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/scan-url", body, &decoded); err != nil {
		return "", err
	}

	if decoded.Data.ID == "" {
		return "", &scan.MalformedResponseError{Field: "data.id"}
	}

	c.logger.Debugw("URL submitted", "url", rawURL, "analysis_id", decoded.Data.ID)
	return decoded.Data.ID, nil
}

// FetchAnalysis retrieves the current state of an analysis.
func (c *Client) FetchAnalysis(ctx context.Context, analysisID string) (*scan.Analysis, error) {
	endpoint := c.baseURL + "/api/analyses/" + url.PathEscape(analysisID)

	var decoded analysisResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return nil, err
	}

	attrs := decoded.Data.Attributes
	if attrs.Status == "" {
		return nil, &scan.MalformedResponseError{Field: "data.attributes.status"}
	}

	engines, err := decodeEngineResults(attrs.Results)
	if err != nil {
		return nil, &scan.MalformedResponseError{Field: "data.attributes.results"}
	}

	analysis := &scan.Analysis{
		Status:    scan.ParseStatus(attrs.Status),
		RawStatus: attrs.Status,
		Engines:   engines,
	}
	if attrs.Stats != nil {
		analysis.Stats = scan.DetectionStats(attrs.Stats)
	}

	return analysis, nil
}

// do issues one rate-limited request and decodes a 2xx JSON body into out.
// Non-2xx responses become TransportErrors carrying the provider's error
// message when one is present, the HTTP status text otherwise.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	op := method + " " + endpoint

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &scan.TransportError{Op: op, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &scan.TransportError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &scan.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.StatusCode),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &scan.TransportError{Op: op, StatusCode: resp.StatusCode, Message: "response is not valid JSON"}
	}

	return nil
}

// errorMessage extracts the provider's error message from a failure body,
// falling back to the HTTP status text.
func errorMessage(raw []byte, statusCode int) string {
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return http.StatusText(statusCode)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return &scan.InvalidInputError{URL: rawURL, Reason: "URL is empty"}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &scan.InvalidInputError{URL: rawURL, Reason: err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return &scan.InvalidInputError{URL: rawURL, Reason: "URL must be absolute with scheme and host"}
	}

	return nil
}
