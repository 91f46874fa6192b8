// Package analyzer talks to the external jurisdiction analysis service.
package analyzer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"compliancesync/internal/domain"
	"compliancesync/internal/ports"
)

//go:embed result.schema.json
var resultSchemaJSON string

const maxBodyBytes = 10 * 1024 * 1024 // 10 MiB

// Client implements ports.JurisdictionAnalyzer over HTTP:
//
//	POST {base}/analyze-compliance  {jurisdictionId, companyProfile, credential}
//	GET  {base}/health
//
// Any transport error, non-200 status or payload that fails the result schema
// is returned as an error.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	schema  *jsonschema.Schema
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (2 minute timeout).
func WithHTTPClient(hc *http.Client) ClientOption { return func(c *Client) { c.http = hc } }

// WithRateLimit bounds the request rate to the analyzer. r <= 0 disables it.
func WithRateLimit(r float64, burst int) ClientOption {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("analyzer base URL is empty")
	}
	schema, err := compileResultSchema()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
		schema:  schema,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func compileResultSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("result.schema.json", strings.NewReader(resultSchemaJSON)); err != nil {
		return nil, fmt.Errorf("loading result schema: %w", err)
	}
	schema, err := c.Compile("result.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling result schema: %w", err)
	}
	return schema, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) Analyze(ctx context.Context, req ports.AnalyzeRequest) (domain.JurisdictionResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.JurisdictionResult{}, fmt.Errorf("waiting for analyzer rate limit: %w", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-compliance", bytes.NewReader(body))
	if err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(respBytes, &eb) == nil && eb.Error != "" {
			return domain.JurisdictionResult{}, fmt.Errorf("analyzer: HTTP %d: %s", resp.StatusCode, eb.Error)
		}
		return domain.JurisdictionResult{}, fmt.Errorf("analyzer: HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(respBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("parsing response JSON (body: %s): %w", truncate(string(respBytes), 200), err)
	}
	if obj, ok := raw.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return domain.JurisdictionResult{}, fmt.Errorf("analyzer: %s", msg)
		}
	}
	if err := c.schema.Validate(raw); err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("analyzer payload rejected: %w", err)
	}

	var res domain.JurisdictionResult
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return domain.JurisdictionResult{}, fmt.Errorf("decoding result: %w", err)
	}
	return res, nil
}

// Health succeeds when the analyzer answers its health endpoint with 200.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("analyzer health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// truncate limits a string to maxLen runes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
