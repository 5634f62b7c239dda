package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

type grepParams struct {
	Pattern         string `json:"pattern"`
	Path            string `json:"path"`
	Glob            string `json:"glob"`
	CaseInsensitive bool   `json:"case_insensitive"`
	Limit           int    `json:"limit"`
}

type grepHit struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// RegisterGrep adds the regex content-search tool.
func RegisterGrep(r *Registry, ft *FileTools) error {
	return r.Register(&Tool{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns matching lines with file and line number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regular expression to search for",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Directory or file to search, relative to the workspace",
				},
				"glob": map[string]any{
					"type":        "string",
					"description": "Only search files matching this glob (e.g. '*.go')",
				},
				"case_insensitive": map[string]any{
					"type":        "boolean",
					"description": "Match case-insensitively",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matching lines (default 50)",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			var p grepParams
			if err := BindArgs(args, &p); err != nil {
				return nil, err
			}
			if p.Pattern == "" {
				return nil, fmt.Errorf("pattern is required")
			}
			if p.Limit <= 0 {
				p.Limit = 50
			}

			expr := p.Pattern
			if p.CaseInsensitive {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern: %w", err)
			}

			root := p.Path
			if root == "" {
				root = "."
			}
			absRoot, err := ft.resolvePath(root)
			if err != nil {
				return nil, err
			}

			hits, truncated, err := grepFiles(ctx, absRoot, re, p.Glob, p.Limit)
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"pattern":   p.Pattern,
				"matches":   hits,
				"count":     len(hits),
				"truncated": truncated,
			}, nil
		},
	})
}

func grepFiles(ctx context.Context, root string, re *regexp.Regexp, glob string, limit int) ([]grepHit, bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("path not found: %s", root)
		}
		return nil, false, err
	}

	hits := []grepHit{}
	truncated := false

	scanFile := func(path, rel string) error {
		f, err := os.Open(path)
		if err != nil {
			return nil // Skip unreadable files
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			if len(hits) >= limit {
				truncated = true
				return fs.SkipAll
			}
			if len(line) > 500 {
				line = line[:500] + "..."
			}
			hits = append(hits, grepHit{File: rel, Line: lineNo, Text: line})
		}
		return nil
	}

	if !info.IsDir() {
		if err := scanFile(root, filepath.Base(root)); err != nil && err != fs.SkipAll {
			return nil, false, err
		}
		return hits, truncated, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if glob != "" {
			nameOK, _ := filepath.Match(glob, d.Name())
			relOK, _ := filepath.Match(glob, rel)
			if !nameOK && !relOK {
				return nil
			}
		}
		return scanFile(path, rel)
	})
	if err != nil && err != fs.SkipAll {
		return nil, false, err
	}

	return hits, truncated, nil
}
