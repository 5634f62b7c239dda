package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// NetProbe runs a fixed set of network diagnostic binaries. Unlike
// bash, the command line is parsed and the executable checked against
// an allowlist, so enabling probes does not grant shell access.
type NetProbe struct {
	enabled        bool
	allowed        map[string]bool
	defaultTimeout time.Duration
	maxOutputBytes int
}

// DefaultProbeBinaries are the diagnostics permitted when no explicit
// allowlist is configured.
var DefaultProbeBinaries = []string{"ping", "traceroute", "dig", "host", "nslookup"}

// NetProbeConfig configures the network probe tool.
type NetProbeConfig struct {
	Enabled         bool
	AllowedBinaries []string
	DefaultTimeout  time.Duration
	MaxOutputBytes  int
}

// NewNetProbe creates a network probe executor.
func NewNetProbe(cfg NetProbeConfig) *NetProbe {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = 100 * 1024
	}
	binaries := cfg.AllowedBinaries
	if len(binaries) == 0 {
		binaries = DefaultProbeBinaries
	}
	allowed := make(map[string]bool, len(binaries))
	for _, b := range binaries {
		allowed[b] = true
	}
	return &NetProbe{
		enabled:        cfg.Enabled,
		allowed:        allowed,
		defaultTimeout: cfg.DefaultTimeout,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

// Enabled reports whether network probes are available.
func (n *NetProbe) Enabled() bool {
	return n.enabled
}

type netProbeParams struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"`
}

// Register adds the net_probe tool to the registry.
func (n *NetProbe) Register(r *Registry) error {
	return r.Register(&Tool{
		Name: "net_probe",
		Description: "Run a network diagnostic command (allowed: " + strings.Join(DefaultProbeBinaries, ", ") + "). " +
			"Example: 'ping -c 4 example.com'. The executable must be on the allowlist; shell syntax is not interpreted.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The diagnostic command with its arguments",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Timeout in seconds (default 60)",
				},
			},
			"required": []string{"command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			var p netProbeParams
			if err := BindArgs(args, &p); err != nil {
				return nil, err
			}
			return n.run(ctx, p.Command, p.Timeout)
		},
	})
}

func (n *NetProbe) run(ctx context.Context, command string, timeoutSec int) (map[string]any, error) {
	if !n.enabled {
		return nil, fmt.Errorf("network probes are disabled")
	}
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command is required")
	}

	// No shell: split on whitespace and exec directly. Metacharacters
	// end up as literal arguments the binary will reject.
	parts := strings.Fields(command)
	binary := parts[0]
	if !n.allowed[binary] {
		return nil, fmt.Errorf("binary not allowed: %s", binary)
	}

	timeout := n.defaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	if timeout > 5*time.Minute {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, parts[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	fields := map[string]any{
		"stdout":    truncateOutput(stdout.String(), n.maxOutputBytes),
		"stderr":    truncateOutput(stderr.String(), n.maxOutputBytes),
		"exit_code": 0,
	}

	if ctx.Err() == context.DeadlineExceeded {
		fields["timed_out"] = true
		fields["exit_code"] = -1
		return fields, fmt.Errorf("probe timed out after %s", timeout)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			fields["exit_code"] = exitErr.ExitCode()
			return fields, fmt.Errorf("probe exited with code %d", exitErr.ExitCode())
		}
		return fields, fmt.Errorf("probe failed: %w", err)
	}

	return fields, nil
}
