package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/storefront/internal/platform/timeouts"
)

const maxErrorBodyBytes = 64 << 10

// HTTPClient is a JSON-over-HTTP Client.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      func() string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBearerToken attaches the token returned by source to every request.
func WithBearerToken(source func() string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = source
	}
}

// NewHTTPClient builds a client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}
	client := &HTTPClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeouts.RemoteRequest},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Get issues a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (Payload, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (Payload, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (Payload, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH request with a JSON body.
func (c *HTTPClient) Patch(ctx context.Context, path string, body any) (Payload, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (Payload, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (Payload, error) {
	if c == nil || c.baseURL == nil {
		return nil, &Error{Message: "remote client is not configured"}
	}
	rawPath, rawQuery, _ := strings.Cut(path, "?")
	target := c.baseURL.JoinPath(strings.TrimPrefix(rawPath, "/"))
	target.RawQuery = rawQuery

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("encode request body: %v", err), Cause: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, Normalize(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := strings.TrimSpace(c.token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Normalize(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeErrorResponse(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Normalize(fmt.Errorf("read response body: %w", err))
	}
	return Payload(data), nil
}

func decodeErrorResponse(resp *http.Response) *Error {
	remoteErr := &Error{
		Status:  resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return remoteErr
	}
	var parsed errorBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		remoteErr.Message = strings.TrimSpace(string(data))
		return remoteErr
	}
	if message := strings.TrimSpace(parsed.Message); message != "" {
		remoteErr.Message = message
	} else if message := strings.TrimSpace(parsed.Error); message != "" {
		remoteErr.Message = message
	}
	remoteErr.Code = strings.TrimSpace(parsed.Code)
	remoteErr.Fields = parsed.Fields
	return remoteErr
}
