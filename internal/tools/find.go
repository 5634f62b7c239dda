package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type globParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Limit   int    `json:"limit"`
}

type globMatch struct {
	path  string
	mtime time.Time
}

// RegisterGlob adds the glob file-discovery tool. Matches are sorted
// by modification time, newest first, so recently touched files come
// back before stale ones.
func RegisterGlob(r *Registry, ft *FileTools) error {
	return r.Register(&Tool{
		Name:        "glob",
		Description: "Find files matching a glob pattern (e.g. '*.go', 'src/**/*.js'). Results are sorted newest first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern to match against file names",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to search, relative to the workspace (default: workspace root)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matches (default 100)",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			var p globParams
			if err := BindArgs(args, &p); err != nil {
				return nil, err
			}
			if p.Pattern == "" {
				return nil, fmt.Errorf("pattern is required")
			}
			if p.Limit <= 0 {
				p.Limit = 100
			}

			root := p.Path
			if root == "" {
				root = "."
			}
			absRoot, err := ft.resolvePath(root)
			if err != nil {
				return nil, err
			}

			matches, truncated, err := globFiles(ctx, absRoot, p.Pattern, p.Limit)
			if err != nil {
				return nil, err
			}

			rel := make([]string, len(matches))
			for i, m := range matches {
				if r, err := filepath.Rel(absRoot, m.path); err == nil {
					rel[i] = r
				} else {
					rel[i] = m.path
				}
			}

			return map[string]any{
				"pattern":   p.Pattern,
				"matches":   rel,
				"count":     len(rel),
				"truncated": truncated,
			}, nil
		},
	})
}

// globFiles walks root collecting files whose base name or
// root-relative path matches pattern, sorted by mtime descending.
func globFiles(ctx context.Context, root, pattern string, limit int) ([]globMatch, bool, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, false, fmt.Errorf("invalid pattern: %w", err)
	}

	var matches []globMatch
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
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
		nameOK, _ := filepath.Match(pattern, d.Name())
		relOK, _ := filepath.Match(pattern, rel)
		if !nameOK && !relOK {
			return nil
		}

		info, infoErr := d.Info()
		var mtime time.Time
		if infoErr == nil {
			mtime = info.ModTime()
		}
		matches = append(matches, globMatch{path: path, mtime: mtime})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("directory not found: %s", root)
		}
		return nil, false, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].mtime.After(matches[j].mtime)
	})

	truncated := false
	if len(matches) > limit {
		matches = matches[:limit]
		truncated = true
	}
	return matches, truncated, nil
}
