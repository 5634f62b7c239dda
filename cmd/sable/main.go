// Sable is a conversational agent for the terminal.
//
// It drives a chat-completion model through a bounded tool-calling loop,
// giving it local capabilities (files, shell, search, hashing, HTTP,
// network diagnostics, binary inspection, web fetch) scoped by a single
// YAML config file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	sable                    Start an interactive chat session
//	sable ask <question>     Ask a single question and exit
//	sable version            Print version and build information
//	sable -config path ...   Use an explicit config file
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sableagent/sable/internal/agent"
	"github.com/sableagent/sable/internal/api"
	"github.com/sableagent/sable/internal/buildinfo"
	"github.com/sableagent/sable/internal/config"
	"github.com/sableagent/sable/internal/events"
	"github.com/sableagent/sable/internal/fetch"
	"github.com/sableagent/sable/internal/history"
	"github.com/sableagent/sable/internal/llm"
	"github.com/sableagent/sable/internal/prompts"
	"github.com/sableagent/sable/internal/tools"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main constructs the OS-level environment and delegates to [run] so the
// full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the sable command. All OS-level
// dependencies are injected: ctx bounds the process lifetime, stdin
// feeds the REPL, stdout carries agent output, stderr carries logs.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals, which makes it impossible to call run() concurrently from
	// tests, and our argument surface is small.
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if command == "version" {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}
	if command == "help" {
		return printUsage(stdout)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// Logs go to stderr so the conversation on stdout stays clean.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)
	logger.Info("starting", "build", buildinfo.String())

	client := buildClient(cfg, logger)
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("tool registration: %w", err)
	}
	logger.Info("tools registered", "names", registry.Names())

	store := openHistory(cfg, logger)
	if store != nil {
		defer store.Close()
	}
	archiver := history.NewArchiver(store, logger)

	bus := events.New()
	session := agent.NewSession(prompts.BaseSystemPrompt())
	loop := agent.NewLoop(logger, client, registry, bus, archiver, agent.LoopConfig{
		Model:           cfg.Models.Default,
		MaxIterations:   cfg.Agent.MaxIterations,
		MaxSynthRetries: cfg.Agent.MaxSynthRetries,
		Temperature:     cfg.Agent.Temperature,
	})

	if cfg.Listen.Enabled {
		srv := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, session, store, bus, logger)
		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server failed", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	switch command {
	case "", "chat":
		return repl(ctx, stdin, stdout, cfg, loop, session, archiver, registry)
	case "ask":
		if len(cmdArgs) == 0 {
			return errors.New("usage: sable ask <question>")
		}
		return ask(ctx, stdout, cfg, loop, session, archiver, strings.Join(cmdArgs, " "))
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// loadConfig resolves the config file. Running without one is fine for
// local use against Ollama, so a missing file only falls back to
// defaults when no explicit path was given.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// buildClient assembles the provider router: Ollama is always present
// as the fallback, remote providers join only when a key is configured.
func buildClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
	multi := llm.NewMultiClient(ollama)
	multi.AddProvider("ollama", ollama)

	if cfg.Anthropic.APIKey != "" {
		multi.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
	}
	if cfg.OpenAI.APIKey != "" {
		multi.AddProvider("openai", llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger))
	}

	for _, m := range cfg.Models.Available {
		multi.AddModel(m.Name, m.Provider)
	}
	return multi
}

// buildRegistry wires every enabled capability into one tool registry.
// File-backed tools require a workspace; bash and net_probe are opt-in.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*tools.Registry, error) {
	r := tools.NewRegistry(logger)

	if cfg.Workspace.Path != "" {
		ft := tools.NewFileTools(cfg.Workspace.Path)
		if err := ft.Register(r); err != nil {
			return nil, err
		}
		if err := tools.RegisterGlob(r, ft); err != nil {
			return nil, err
		}
		if err := tools.RegisterGrep(r, ft); err != nil {
			return nil, err
		}
		if err := tools.NewBinaryTools(ft).Register(r); err != nil {
			return nil, err
		}
	}

	if cfg.ShellExec.Enabled {
		sc := tools.DefaultShellExecConfig()
		sc.Enabled = true
		sc.WorkingDir = cfg.ShellExec.WorkingDir
		if sc.WorkingDir == "" {
			sc.WorkingDir = cfg.Workspace.Path
		}
		sc.AllowedCmds = cfg.ShellExec.AllowedPrefixes
		// User patterns extend the built-in deny list rather than replace it.
		sc.DeniedCmds = append(sc.DeniedCmds, cfg.ShellExec.DeniedPatterns...)
		sc.DefaultTimeout = cfg.ShellExec.ShellTimeout()
		if err := tools.NewShellExec(sc).Register(r); err != nil {
			return nil, err
		}
	}

	if cfg.NetProbe.Enabled {
		nc := tools.NetProbeConfig{
			Enabled:         true,
			AllowedBinaries: cfg.NetProbe.AllowedBinaries,
			DefaultTimeout:  cfg.NetProbe.ProbeTimeout(),
		}
		if err := tools.NewNetProbe(nc).Register(r); err != nil {
			return nil, err
		}
	}

	if err := tools.RegisterCrypto(r); err != nil {
		return nil, err
	}
	if err := tools.RegisterHTTPRequest(r); err != nil {
		return nil, err
	}
	if err := fetch.RegisterTool(r, fetch.New()); err != nil {
		return nil, err
	}

	return r, nil
}

// openHistory opens the transcript archive. Failures here degrade to an
// unarchived session rather than refusing to start.
func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Warn("cannot create data directory, history disabled", "dir", cfg.DataDir, "error", err)
		return nil
	}
	store, err := history.NewStore(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		logger.Warn("cannot open history database, history disabled", "error", err)
		return nil
	}
	return store
}

// ask runs a single question through the loop and prints the streamed answer.
func ask(ctx context.Context, stdout io.Writer, cfg *config.Config, loop *agent.Loop, session *agent.Session, archiver *history.Archiver, question string) error {
	archiver.ConversationStarted(ctx, session.ID(), cfg.Models.Default)
	defer archiver.ConversationEnded(ctx, session.ID())

	_, err := loop.Run(ctx, session, question, func(text string) {
		fmt.Fprint(stdout, text)
	})
	fmt.Fprintln(stdout)
	return err
}

// repl is the interactive chat surface. Each run gets its own signal
// context so Ctrl-C aborts the in-flight request but leaves the session
// and its transcript intact.
func repl(ctx context.Context, stdin io.Reader, stdout io.Writer, cfg *config.Config, loop *agent.Loop, session *agent.Session, archiver *history.Archiver, registry *tools.Registry) error {
	fmt.Fprintf(stdout, "%s\nModel: %s. Type /help for commands.\n\n", buildinfo.String(), cfg.Models.Default)

	archiver.ConversationStarted(ctx, session.ID(), cfg.Models.Default)
	defer archiver.ConversationEnded(ctx, session.ID())

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(stdout, "sable> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			switch line {
			case "/exit", "/quit":
				return nil
			case "/new":
				archiver.ConversationEnded(ctx, session.ID())
				session.Reset()
				archiver.ConversationStarted(ctx, session.ID(), cfg.Models.Default)
				fmt.Fprintf(stdout, "Started a new conversation (%s).\n", session.ID())
				continue
			case "/tools":
				fmt.Fprintf(stdout, "Registered tools: %s\n", strings.Join(registry.Names(), ", "))
				continue
			case "/help":
				fmt.Fprint(stdout, replHelp)
				continue
			default:
				fmt.Fprintf(stdout, "Unknown command %s. Type /help for commands.\n", line)
				continue
			}
		}

		// Ctrl-C during a run cancels only that run. At the prompt the
		// default handler applies and terminates the process.
		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		res, err := loop.Run(runCtx, session, line, func(text string) {
			fmt.Fprint(stdout, text)
		})
		stop()
		fmt.Fprintln(stdout)

		switch {
		case err != nil && errors.Is(err, context.Canceled):
			fmt.Fprintln(stdout, "(interrupted)")
		case err != nil:
			fmt.Fprintf(stdout, "error: %s\n", err)
		case res.Exhausted:
			fmt.Fprintf(stdout, "(note: %s)\n", res.ExhaustReason)
		}
	}
}

const replHelp = `Commands:
  /new     Start a new conversation (clears the transcript)
  /tools   List the registered tools
  /help    Show this help
  /exit    Quit

Anything else is sent to the model. Ctrl-C aborts an in-flight request.
`

func printUsage(w io.Writer) error {
	_, err := fmt.Fprint(w, `Sable - a conversational agent for the terminal

Usage:
  sable                    Start an interactive chat session
  sable ask <question>     Ask a single question and exit
  sable version            Print version and build information

Flags:
  -config <path>           Use an explicit config file
`)
	return err
}
