package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileTools provides file read/write/edit capabilities within a workspace.
type FileTools struct {
	workspacePath string
}

// NewFileTools creates a new FileTools instance.
// If workspacePath is empty, file tools will be disabled.
func NewFileTools(workspacePath string) *FileTools {
	return &FileTools{workspacePath: workspacePath}
}

// Enabled returns true if file tools are available.
func (ft *FileTools) Enabled() bool {
	return ft.workspacePath != ""
}

// WorkspacePath returns the configured workspace path.
func (ft *FileTools) WorkspacePath() string {
	return ft.workspacePath
}

// resolvePath converts a relative path to an absolute path within the workspace.
// Returns an error if the path would escape the workspace.
func (ft *FileTools) resolvePath(path string) (string, error) {
	if ft.workspacePath == "" {
		return "", fmt.Errorf("workspace not configured")
	}

	workspaceAbs, err := filepath.Abs(ft.workspacePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace: %w", err)
	}

	var absPath string
	if filepath.IsAbs(path) {
		absPath = filepath.Clean(path)
	} else {
		absPath = filepath.Clean(filepath.Join(workspaceAbs, path))
	}

	// Separator-aware prefix check so /workspace-evil does not pass
	// for workspace /workspace.
	if absPath != workspaceAbs && !strings.HasPrefix(absPath, workspaceAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}

	return absPath, nil
}

type readParams struct {
	FilePath string `json:"file_path"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
}

type writeParams struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type editParams struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

// Register adds the read, write, and edit tools to the registry.
func (ft *FileTools) Register(r *Registry) error {
	if err := r.Register(&Tool{
		Name:        "read",
		Description: "Read a file from the workspace. Supports line-based offset and limit for large files.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "1-indexed line to start reading from",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of lines to read",
				},
			},
			"required": []string{"file_path"},
		},
		Handler: ft.handleRead,
	}); err != nil {
		return err
	}

	if err := r.Register(&Tool{
		Name:        "write",
		Description: "Write content to a file in the workspace, creating parent directories as needed. Overwrites existing files.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write",
				},
			},
			"required": []string{"file_path", "content"},
		},
		Handler: ft.handleWrite,
	}); err != nil {
		return err
	}

	return r.Register(&Tool{
		Name:        "edit",
		Description: "Replace an exact string in a file. The old string must be unique in the file unless replace_all is set.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace",
				},
				"old_string": map[string]any{
					"type":        "string",
					"description": "Exact text to replace",
				},
				"new_string": map[string]any{
					"type":        "string",
					"description": "Replacement text",
				},
				"replace_all": map[string]any{
					"type":        "boolean",
					"description": "Replace every occurrence instead of requiring uniqueness",
				},
			},
			"required": []string{"file_path", "old_string", "new_string"},
		},
		Handler: ft.handleEdit,
	})
}

func (ft *FileTools) handleRead(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p readParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}

	content, err := ft.Read(ctx, p.FilePath, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"file_path": p.FilePath, "content": content}, nil
}

func (ft *FileTools) handleWrite(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p writeParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}

	if err := ft.Write(ctx, p.FilePath, p.Content); err != nil {
		return nil, err
	}
	return map[string]any{
		"file_path":     p.FilePath,
		"bytes_written": len(p.Content),
		"lines":         strings.Count(p.Content, "\n") + 1,
	}, nil
}

func (ft *FileTools) handleEdit(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p editParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}
	if p.OldString == p.NewString {
		return nil, fmt.Errorf("old_string and new_string are identical")
	}

	replaced, err := ft.Edit(ctx, p.FilePath, p.OldString, p.NewString, p.ReplaceAll)
	if err != nil {
		return nil, err
	}
	return map[string]any{"file_path": p.FilePath, "replacements": replaced}, nil
}

// Read reads the contents of a file.
func (ft *FileTools) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	absPath, err := ft.resolvePath(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)

	// Apply offset and limit if specified (line-based)
	if offset > 0 || limit > 0 {
		lines := strings.Split(content, "\n")

		// Convert 1-indexed offset to 0-indexed
		startLine := 0
		if offset > 0 {
			startLine = offset - 1
		}
		if startLine >= len(lines) {
			return "", fmt.Errorf("offset %d exceeds file length (%d lines)", offset, len(lines))
		}

		endLine := len(lines)
		if limit > 0 && startLine+limit < endLine {
			endLine = startLine + limit
		}

		content = strings.Join(lines[startLine:endLine], "\n")

		// Add line info if truncated
		if startLine > 0 || endLine < len(lines) {
			content = fmt.Sprintf("[Lines %d-%d of %d]\n%s", startLine+1, endLine, len(lines), content)
		}
	}

	// Truncate very large content
	const maxBytes = 50 * 1024 // 50KB
	if len(content) > maxBytes {
		content = content[:maxBytes] + "\n\n[... truncated, use offset/limit for more ...]"
	}

	return content, nil
}

// Write writes content to a file, creating directories as needed.
func (ft *FileTools) Write(ctx context.Context, path, content string) error {
	absPath, err := ft.resolvePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Edit performs a text replacement in a file and returns the number of
// replacements made. Without replaceAll the old text must occur exactly
// once.
func (ft *FileTools) Edit(ctx context.Context, path, oldText, newText string, replaceAll bool) (int, error) {
	absPath, err := ft.resolvePath(path)
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("file not found: %s", path)
		}
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)

	count := strings.Count(content, oldText)
	if count == 0 {
		// Provide helpful error with context
		if len(oldText) > 100 {
			return 0, fmt.Errorf("old text not found in file (first 100 chars: %q...)", oldText[:100])
		}
		return 0, fmt.Errorf("old text not found in file: %q", oldText)
	}

	var newContent string
	replaced := count
	if replaceAll {
		newContent = strings.ReplaceAll(content, oldText, newText)
	} else {
		if count > 1 {
			return 0, fmt.Errorf("old text appears %d times in file; must be unique for safe editing (or set replace_all)", count)
		}
		newContent = strings.Replace(content, oldText, newText, 1)
		replaced = 1
	}

	if err := os.WriteFile(absPath, []byte(newContent), 0644); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return replaced, nil
}
