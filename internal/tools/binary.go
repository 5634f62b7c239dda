package tools

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// BinaryTools inspects executables and other opaque files in the
// workspace: type detection, digests, printable strings, and
// symbol/disassembly listings via binutils when present.
type BinaryTools struct {
	ft             *FileTools
	maxOutputBytes int
}

// NewBinaryTools creates a binary inspection toolset scoped to ft's workspace.
func NewBinaryTools(ft *FileTools) *BinaryTools {
	return &BinaryTools{ft: ft, maxOutputBytes: 100 * 1024}
}

type binaryParams struct {
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
	Section   string `json:"section"`
	MinLength int    `json:"min_length"`
	Limit     int    `json:"limit"`
}

// Register adds the binary inspection tool.
func (bt *BinaryTools) Register(r *Registry) error {
	return r.Register(&Tool{
		Name: "binary",
		Description: "Inspect a binary file: 'info' (type, size, digests), 'strings' (printable strings), " +
			"'symbols' (symbol table via nm), 'disassemble' (via objdump, optionally one section).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace",
				},
				"operation": map[string]any{
					"type":        "string",
					"enum":        []string{"info", "strings", "symbols", "disassemble"},
					"description": "What to extract",
				},
				"section": map[string]any{
					"type":        "string",
					"description": "Section to disassemble (e.g. .text)",
				},
				"min_length": map[string]any{
					"type":        "integer",
					"description": "Minimum string length for 'strings' (default 4)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of strings returned (default 200)",
				},
			},
			"required": []string{"file_path", "operation"},
		},
		Handler: bt.handle,
	})
}

func (bt *BinaryTools) handle(ctx context.Context, args map[string]any) (map[string]any, error) {
	var p binaryParams
	if err := BindArgs(args, &p); err != nil {
		return nil, err
	}
	if p.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}

	absPath, err := bt.ft.resolvePath(p.FilePath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", p.FilePath)
		}
		return nil, err
	}

	switch p.Operation {
	case "info":
		return bt.info(absPath, p.FilePath)
	case "strings":
		return bt.strings(absPath, p.FilePath, p.MinLength, p.Limit)
	case "symbols":
		return bt.binutils(ctx, "nm", []string{"--defined-only", absPath}, p.FilePath)
	case "disassemble":
		args := []string{"-d"}
		if p.Section != "" {
			args = append(args, "-j", p.Section)
		}
		args = append(args, absPath)
		return bt.binutils(ctx, "objdump", args, p.FilePath)
	}
	return nil, fmt.Errorf("unknown operation: %s", p.Operation)
}

func (bt *BinaryTools) info(absPath, relPath string) (map[string]any, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	md5sum := md5.Sum(data)
	sha1sum := sha1.Sum(data)
	sha256sum := sha256.Sum256(data)

	return map[string]any{
		"file_path": relPath,
		"size":      len(data),
		"type":      detectFileType(data),
		"md5":       hex.EncodeToString(md5sum[:]),
		"sha1":      hex.EncodeToString(sha1sum[:]),
		"sha256":    hex.EncodeToString(sha256sum[:]),
	}, nil
}

func (bt *BinaryTools) strings(absPath, relPath string, minLen, limit int) (map[string]any, error) {
	if minLen <= 0 {
		minLen = 4
	}
	if limit <= 0 {
		limit = 200
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	found := extractStrings(data, minLen, limit)
	return map[string]any{
		"file_path": relPath,
		"strings":   found,
		"count":     len(found),
		"truncated": len(found) == limit,
	}, nil
}

func (bt *BinaryTools) binutils(ctx context.Context, binary string, args []string, relPath string) (map[string]any, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%s not available on this system", binary)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s failed: %s", binary, msg)
	}

	return map[string]any{
		"file_path": relPath,
		"output":    truncateOutput(stdout.String(), bt.maxOutputBytes),
	}, nil
}

// detectFileType identifies common executable and archive formats by
// magic bytes, falling back to text/data heuristics.
func detectFileType(data []byte) string {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x7f, 'E', 'L', 'F'}):
		return "ELF"
	case len(data) >= 2 && data[0] == 'M' && data[1] == 'Z':
		return "PE/DOS executable"
	case len(data) >= 4 && (bytes.Equal(data[:4], []byte{0xfe, 0xed, 0xfa, 0xce}) ||
		bytes.Equal(data[:4], []byte{0xfe, 0xed, 0xfa, 0xcf}) ||
		bytes.Equal(data[:4], []byte{0xcf, 0xfa, 0xed, 0xfe}) ||
		bytes.Equal(data[:4], []byte{0xce, 0xfa, 0xed, 0xfe})):
		return "Mach-O"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04")):
		return "ZIP archive"
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0x1f, 0x8b}):
		return "gzip compressed"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("!<arch>\n")):
		return "ar archive"
	case isMostlyText(data):
		return "text"
	default:
		return "data"
	}
}

func isMostlyText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	printable := 0
	for _, b := range sample {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f) {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.9
}

// extractStrings pulls runs of printable ASCII of at least minLen.
func extractStrings(data []byte, minLen, limit int) []string {
	var out []string
	var cur []byte
	flush := func() {
		if len(cur) >= minLen && len(out) < limit {
			out = append(out, string(cur))
		}
		cur = cur[:0]
	}
	for _, b := range data {
		if b >= 0x20 && b < 0x7f && unicode.IsPrint(rune(b)) {
			cur = append(cur, b)
			continue
		}
		flush()
		if len(out) >= limit {
			break
		}
	}
	flush()
	return out
}
