package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestShell() *ShellExec {
	cfg := DefaultShellExecConfig()
	cfg.Enabled = true
	return NewShellExec(cfg)
}

func TestShellExec_Disabled(t *testing.T) {
	s := NewShellExec(DefaultShellExecConfig())
	if s.Enabled() {
		t.Error("shell exec should be disabled by default")
	}
	_, err := s.Exec(context.Background(), "echo hi", "", 0)
	if err == nil {
		t.Fatal("expected error when disabled")
	}
}

func TestShellExec_SimpleCommand(t *testing.T) {
	s := newTestShell()
	result, err := s.Exec(context.Background(), "echo hello", "", 0)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestShellExec_NonZeroExit(t *testing.T) {
	s := newTestShell()
	result, err := s.Exec(context.Background(), "exit 3", "", 0)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestShellExec_Stderr(t *testing.T) {
	s := newTestShell()
	result, err := s.Exec(context.Background(), "echo oops >&2", "", 0)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Errorf("stderr = %q, want oops", result.Stderr)
	}
}

func TestShellExec_DeniedPattern(t *testing.T) {
	s := newTestShell()
	_, err := s.Exec(context.Background(), "rm -rf /", "", 0)
	if err == nil {
		t.Fatal("expected denied command to be blocked")
	}
	if !strings.Contains(err.Error(), "security policy") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestShellExec_Allowlist(t *testing.T) {
	cfg := DefaultShellExecConfig()
	cfg.Enabled = true
	cfg.AllowedCmds = []string{"echo", "ls"}
	s := NewShellExec(cfg)

	if _, err := s.Exec(context.Background(), "echo ok", "", 0); err != nil {
		t.Errorf("allowlisted command rejected: %v", err)
	}
	if _, err := s.Exec(context.Background(), "cat /etc/hosts", "", 0); err == nil {
		t.Error("non-allowlisted command should be rejected")
	}
}

func TestShellExec_Timeout(t *testing.T) {
	cfg := DefaultShellExecConfig()
	cfg.Enabled = true
	cfg.DefaultTimeout = 100 * time.Millisecond
	s := NewShellExec(cfg)

	result, err := s.Exec(context.Background(), "sleep 5", "", 0)
	if err != nil {
		t.Fatalf("timeout should be a result, not an error: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
	if result.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", result.ExitCode)
	}
}

func TestShellExec_Cwd(t *testing.T) {
	s := newTestShell()
	dir := t.TempDir()
	result, err := s.Exec(context.Background(), "pwd", dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(result.Stdout) != dir {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(result.Stdout), dir)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := truncateOutput(long, 100)
	if !strings.Contains(got, "truncated") {
		t.Error("expected truncation marker")
	}
	if truncateOutput("short", 100) != "short" {
		t.Error("short output should pass through")
	}
}

func TestBashTool_Dispatch(t *testing.T) {
	r := newTestRegistry(t)
	s := newTestShell()
	if err := s.Register(r); err != nil {
		t.Fatal(err)
	}

	res := r.Dispatch(context.Background(), "bash", `{"command":"echo from-tool"}`)
	if !res.Success {
		t.Fatalf("dispatch failed: %s", res.Error)
	}
	if !strings.Contains(res.Fields["stdout"].(string), "from-tool") {
		t.Errorf("stdout = %v", res.Fields["stdout"])
	}

	// Non-zero exit is a failed result carrying the captured output.
	res = r.Dispatch(context.Background(), "bash", `{"command":"echo partial; exit 2"}`)
	if res.Success {
		t.Error("non-zero exit should fail the result")
	}
	if !strings.Contains(res.Fields["stdout"].(string), "partial") {
		t.Error("stdout should be preserved on failure")
	}
	if res.Fields["exit_code"] != 2 {
		t.Errorf("exit_code = %v, want 2", res.Fields["exit_code"])
	}
}
