package fetch

import (
	"context"
	"fmt"

	"github.com/sableagent/sable/internal/tools"
)

// RegisterTool adds the web_fetch tool backed by f to the registry.
func RegisterTool(r *tools.Registry, f *Fetcher) error {
	return r.Register(&tools.Tool{
		Name:        "web_fetch",
		Description: "Fetch a web page and extract its readable text content. Strips scripts, navigation, and other boilerplate from HTML.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL to fetch. https is assumed when no scheme is given.",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Maximum characters of extracted text to return. Default: 50000.",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			var p struct {
				URL      string `json:"url"`
				MaxChars int    `json:"max_chars"`
			}
			if err := tools.BindArgs(args, &p); err != nil {
				return nil, err
			}
			if p.URL == "" {
				return nil, fmt.Errorf("url is required")
			}

			page, err := f.Fetch(ctx, p.URL, p.MaxChars)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"url":          page.URL,
				"title":        page.Title,
				"content":      page.Content,
				"content_type": page.ContentType,
				"status":       page.StatusCode,
				"length":       page.Length,
				"truncated":    page.Truncated,
			}, nil
		},
	})
}
