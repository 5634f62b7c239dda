package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sableagent/sable/internal/httpkit"
)

type httpRequestParams struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Params    map[string]string `json:"params"`
	Body      string            `json:"body"`
	JSON      map[string]any    `json:"json"`
	Timeout   int               `json:"timeout"`
	VerifySSL *bool             `json:"verify_ssl"`
}

const httpResponseLimit = 100 * 1024 // 100KB

// RegisterHTTPRequest adds the general-purpose HTTP client tool.
func RegisterHTTPRequest(r *Registry) error {
	return r.Register(&Tool{
		Name:        "http_request",
		Description: "Make an HTTP request and return status, headers, and body. Supports query params, custom headers, and a raw or JSON body.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Target URL (http or https)",
				},
				"method": map[string]any{
					"type":        "string",
					"description": "HTTP method (default GET)",
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "Request headers",
				},
				"params": map[string]any{
					"type":        "object",
					"description": "Query string parameters",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Raw request body",
				},
				"json": map[string]any{
					"type":        "object",
					"description": "JSON request body (sets Content-Type)",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Timeout in seconds (default 30)",
				},
				"verify_ssl": map[string]any{
					"type":        "boolean",
					"description": "Verify TLS certificates (default true)",
				},
			},
			"required": []string{"url"},
		},
		Handler: handleHTTPRequest,
	})
}

func handleHTTPRequest(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p httpRequestParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url: %s", p.URL)
	}
	if len(p.Params) > 0 {
		q := u.Query()
		for k, v := range p.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}

	timeout := 30 * time.Second
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	var body io.Reader
	contentType := ""
	switch {
	case p.JSON != nil:
		data, err := json.Marshal(p.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal json body: %w", err)
		}
		body = strings.NewReader(string(data))
		contentType = "application/json"
	case p.Body != "":
		body = strings.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	opts := []httpkit.ClientOption{httpkit.WithTimeout(timeout)}
	if p.VerifySSL != nil && !*p.VerifySSL {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}
	client := httpkit.NewClient(opts...)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("request timed out after %s", timeout)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, httpResponseLimit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	httpkit.DrainAndClose(resp.Body, 1024)

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status":      resp.StatusCode,
		"headers":     headers,
		"body":        string(respBody),
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"url":         u.String(),
		"body_length": len(respBody),
	}, nil
}
