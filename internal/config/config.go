// Package config handles Sable configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./sable.yaml, ~/.config/sable/config.yaml, /etc/sable/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"sable.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sable", "config.yaml"))
	}

	paths = append(paths, "/etc/sable/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Sable configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Models    ModelsConfig    `yaml:"models"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Agent     AgentConfig     `yaml:"agent"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	ShellExec ShellExecConfig `yaml:"shell_exec"`
	NetProbe  NetProbeConfig  `yaml:"net_probe"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the optional HTTP API server settings.
type ListenConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Bind address (default: "127.0.0.1")
	Port    int    `yaml:"port"`    // Default: 8745
}

// ModelsConfig defines model routing settings.
type ModelsConfig struct {
	Default   string        `yaml:"default"`
	OllamaURL string        `yaml:"ollama_url"`
	Available []ModelConfig `yaml:"available"`
}

// ModelConfig maps a model name to the provider that serves it.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // ollama, anthropic, openai
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig defines settings for any OpenAI-compatible endpoint
// (OpenAI itself, OpenRouter, DeepSeek, a local proxy).
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Empty = api.openai.com
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	// MaxIterations caps model-call rounds per user message (default 10).
	MaxIterations int `yaml:"max_iterations"`
	// MaxSynthRetries caps stall-recovery attempts (default 3).
	MaxSynthRetries int `yaml:"max_synth_retries"`
	// Temperature for normal completions (default 0.75).
	Temperature float64 `yaml:"temperature"`
}

// WorkspaceConfig defines the agent's workspace for file operations.
type WorkspaceConfig struct {
	// Path is the root directory for file operations.
	// All file tool paths are relative to this directory.
	// If empty, file tools are disabled.
	Path string `yaml:"path"`
}

// ShellExecConfig defines shell execution capabilities.
type ShellExecConfig struct {
	// Enabled allows shell command execution. Disabled by default for safety.
	Enabled bool `yaml:"enabled"`
	// WorkingDir sets the default working directory for commands.
	WorkingDir string `yaml:"working_dir"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the default timeout in seconds (default 120).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// NetProbeConfig defines the network diagnostics tool.
type NetProbeConfig struct {
	// Enabled allows network probe commands. Disabled by default.
	Enabled bool `yaml:"enabled"`
	// AllowedBinaries limits probes to these executables. When empty a
	// built-in set of common diagnostics (ping, traceroute, dig, host,
	// nslookup) is used.
	AllowedBinaries []string `yaml:"allowed_binaries"`
	// DefaultTimeoutSec is the default timeout in seconds (default 60).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so api keys can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Address: "127.0.0.1", Port: 8745},
		Models: ModelsConfig{
			Default:   "qwen3:4b",
			OllamaURL: "http://localhost:11434",
			Available: []ModelConfig{
				{Name: "qwen3:4b", Provider: "ollama"},
			},
		},
		Agent: AgentConfig{
			MaxIterations:   10,
			MaxSynthRetries: 3,
			Temperature:     0.75,
		},
		DataDir: defaultDataDir(),
	}
}

// defaultDataDir returns ~/.local/share/sable, falling back to the
// current directory when the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "sable")
}

// ShellTimeout returns the configured shell timeout as a duration.
func (c *ShellExecConfig) ShellTimeout() time.Duration {
	if c.DefaultTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.DefaultTimeoutSec) * time.Second
}

// ProbeTimeout returns the configured probe timeout as a duration.
func (c *NetProbeConfig) ProbeTimeout() time.Duration {
	if c.DefaultTimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.DefaultTimeoutSec) * time.Second
}
