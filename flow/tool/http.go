package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool performs GET and POST requests on behalf of an agent.
//
// Input parameters:
//   - url: target URL (required)
//   - method: "GET" or "POST", defaults to "GET"
//   - headers: optional map of header values
//   - body: optional request body for POST
//
// Output:
//   - status_code: HTTP status code
//   - headers: response headers
//   - body: response body as string
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool returns an HTTP tool using the given client; nil falls
// back to a default client. Timeouts come from the call context.
func NewHTTPTool(client *http.Client) *HTTPTool {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTool{client: client}
}

// Name implements Tool.
func (h *HTTPTool) Name() string { return "http_request" }

// Description implements Tool.
func (h *HTTPTool) Description() string {
	return "Perform an HTTP GET or POST request and return status, headers, and body."
}

// Call implements Tool.
func (h *HTTPTool) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := "GET"
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	respHeaders := make(map[string]any)
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}
	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}
