package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sableagent/sable/internal/events"
	"github.com/sableagent/sable/internal/history"
	"github.com/sableagent/sable/internal/llm"
	"github.com/sableagent/sable/internal/prompts"
	"github.com/sableagent/sable/internal/tools"
)

const (
	// DefaultMaxIterations bounds tool-calling rounds per request.
	DefaultMaxIterations = 10
	// DefaultMaxSynthRetries bounds empty-completion recovery attempts.
	DefaultMaxSynthRetries = 3
	// minSynthesisLength is the shortest stripped completion accepted
	// from a synthesis retry.
	minSynthesisLength = 5
)

// Emit receives assistant-visible text as it is produced: streamed
// tokens during model calls, or whole chunks for recovered and fallback
// replies. A nil Emit is allowed.
type Emit func(text string)

// Result is the outcome of one Run.
type Result struct {
	Content       string `json:"content"`
	Model         string `json:"model"`
	Iterations    int    `json:"iterations"`
	Exhausted     bool   `json:"exhausted,omitempty"`
	ExhaustReason string `json:"exhaust_reason,omitempty"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
}

// LoopConfig collects the knobs for a Loop. Zero values fall back to
// the package defaults.
type LoopConfig struct {
	Model           string
	MaxIterations   int
	MaxSynthRetries int
	Temperature     float64
}

// Loop drives user messages through model calls and tool dispatches.
type Loop struct {
	logger  *slog.Logger
	llm     llm.Client
	tools   *tools.Registry
	bus     *events.Bus
	archive *history.Archiver

	model           string
	maxIterations   int
	maxSynthRetries int
	temperature     float64
}

// NewLoop assembles a Loop. bus and archive may be nil; both are
// nil-safe downstream.
func NewLoop(logger *slog.Logger, client llm.Client, registry *tools.Registry, bus *events.Bus, archive *history.Archiver, cfg LoopConfig) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxSynthRetries <= 0 {
		cfg.MaxSynthRetries = DefaultMaxSynthRetries
	}
	return &Loop{
		logger:          logger.With("component", "agent"),
		llm:             client,
		tools:           registry,
		bus:             bus,
		archive:         archive,
		model:           cfg.Model,
		maxIterations:   cfg.MaxIterations,
		maxSynthRetries: cfg.MaxSynthRetries,
		temperature:     cfg.Temperature,
	}
}

// Run drives one user message to completion. Gateway faults
// (llm.AuthError, llm.TransportError) abort the run and are returned to
// the caller; the transcript keeps everything appended so far, so the
// next Run continues from a coherent state.
func (l *Loop) Run(ctx context.Context, sess *Session, userText string, emit Emit) (*Result, error) {
	start := time.Now()
	requestID := uuid.NewString()
	transcript := sess.Transcript()

	l.logger.Info("request started",
		"request_id", requestID,
		"conversation", sess.ID(),
		"model", l.model,
	)
	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindRequestStart,
		Data:      map[string]any{"request_id": requestID, "conversation_id": sess.ID()},
	})

	transcript.AppendUser(userText)
	l.archiveTurn(ctx, sess, "user", userText)

	res := &Result{Model: l.model}
	toolsRan := false

	for iter := 0; iter < l.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		resp, err := l.callModel(ctx, requestID, iter, transcript.Snapshot(), l.tools.List(), nil, emit)
		if err != nil {
			l.logger.Error("model call failed", "request_id", requestID, "iter", iter, "error", err)
			return nil, err
		}
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens

		if len(resp.Message.ToolCalls) > 0 {
			toolsRan = true
			calls := ensureCallIDs(resp.Message.ToolCalls)
			transcript.AppendAssistant(resp.Message.Content, calls)
			l.archiveTurn(ctx, sess, "assistant", resp.Message.Content)

			// Sequential, in issuance order: one tool turn per call ID.
			for _, call := range calls {
				l.dispatchCall(ctx, sess, requestID, call)
			}
			continue
		}

		text := strings.TrimSpace(resp.Message.Content)
		if text != "" {
			transcript.AppendAssistant(resp.Message.Content, nil)
			l.archiveTurn(ctx, sess, "assistant", resp.Message.Content)
			res.Content = resp.Message.Content
			l.complete(sess, requestID, res, start)
			return res, nil
		}

		// Empty completion. With no tool activity this request there is
		// nothing to synthesize from; answer with the fixed marker.
		if !toolsRan {
			res.Content = prompts.EmptyReplyFallback()
			transcript.AppendAssistant(res.Content, nil)
			l.archiveTurn(ctx, sess, "assistant", res.Content)
			if emit != nil {
				emit(res.Content)
			}
			l.complete(sess, requestID, res, start)
			return res, nil
		}

		content, err := l.synthesize(ctx, requestID, transcript, res)
		if err != nil {
			return nil, err
		}
		transcript.AppendAssistant(content, nil)
		l.archiveTurn(ctx, sess, "assistant", content)
		res.Content = content
		if emit != nil {
			emit(content)
		}
		l.complete(sess, requestID, res, start)
		return res, nil
	}

	// Iteration budget spent. Terminate with an explicit signal and a
	// forced tools-withheld completion so the transcript never ends on
	// an unresolved tool batch.
	res.Exhausted = true
	res.ExhaustReason = fmt.Sprintf("iteration budget of %d exhausted without a final answer", l.maxIterations)
	l.logger.Warn("iteration budget exhausted", "request_id", requestID, "iterations", l.maxIterations)

	content := l.forcedCompletion(ctx, requestID, transcript, res, emit)
	transcript.AppendAssistant(content, nil)
	l.archiveTurn(ctx, sess, "assistant", content)
	res.Content = content
	l.complete(sess, requestID, res, start)
	return res, nil
}

// callModel performs one gateway call, publishing llm_call/llm_response
// events around it. Streaming tokens are forwarded to emit.
func (l *Loop) callModel(ctx context.Context, requestID string, iter int, msgs []llm.Message, toolDefs []map[string]any, opts *llm.Options, emit Emit) (*llm.ChatResponse, error) {
	if opts == nil {
		opts = &llm.Options{Temperature: l.temperature}
	}
	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindLLMCall,
		Data:      map[string]any{"request_id": requestID, "iter": iter, "model": l.model},
	})

	var cb llm.StreamCallback
	if emit != nil {
		cb = func(ev llm.StreamEvent) {
			if ev.Kind == llm.KindToken {
				emit(ev.Token)
			}
		}
	}
	resp, err := l.llm.ChatStream(ctx, l.model, msgs, toolDefs, opts, cb)
	if err != nil {
		return nil, err
	}

	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindLLMResponse,
		Data: map[string]any{
			"request_id": requestID,
			"iter":       iter,
			"model":      l.model,
			"tokens_in":  resp.InputTokens,
			"tokens_out": resp.OutputTokens,
			"tool_calls": len(resp.Message.ToolCalls),
		},
	})
	return resp, nil
}

// dispatchCall executes one tool call and appends its result turn. The
// dispatcher never errors; every fault is a failure payload the model
// sees on the next iteration.
func (l *Loop) dispatchCall(ctx context.Context, sess *Session, requestID string, call llm.ToolCall) {
	name := call.Function.Name
	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindToolCall,
		Data:      map[string]any{"request_id": requestID, "tool": name, "call_id": call.ID},
	})

	started := time.Now()
	result := l.tools.DispatchArgs(ctx, name, call.Function.Arguments)
	elapsed := time.Since(started)
	payload := result.JSON()

	sess.Transcript().AppendToolResult(call.ID, payload)
	l.archiveTurn(ctx, sess, "tool", payload)
	l.archive.ToolCall(ctx, history.ToolCallRecord{
		ConversationID: sess.ID(),
		CallID:         call.ID,
		Name:           name,
		Arguments:      argsJSON(call.Function.Arguments),
		Result:         payload,
		Error:          result.Error,
		DurationMs:     elapsed.Milliseconds(),
	})

	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindToolDone,
		Data: map[string]any{
			"request_id":  requestID,
			"tool":        name,
			"call_id":     call.ID,
			"ok":          result.Success,
			"duration_ms": elapsed.Milliseconds(),
		},
	})
	l.logger.Debug("tool dispatched",
		"request_id", requestID,
		"tool", name,
		"ok", result.Success,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// synthesize recovers from an empty completion after tool activity. The
// instruction turn rides only on the retry calls, never the transcript,
// and the temperature climbs with each attempt. Gateway faults abort
// the run.
func (l *Loop) synthesize(ctx context.Context, requestID string, transcript *Transcript, res *Result) (string, error) {
	base := transcript.Snapshot()
	instruction := llm.Message{Role: "user", Content: prompts.SynthesisInstruction()}

	for attempt := 0; attempt < l.maxSynthRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		opts := &llm.Options{Temperature: 0.8 + 0.1*float64(attempt)}
		msgs := append(append([]llm.Message(nil), base...), instruction)

		l.logger.Debug("synthesis retry", "request_id", requestID, "attempt", attempt, "temperature", opts.Temperature)
		resp, err := l.callModel(ctx, requestID, -1, msgs, nil, opts, nil)
		if err != nil {
			return "", err
		}
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens

		if text := strings.TrimSpace(resp.Message.Content); len(text) > minSynthesisLength {
			return text, nil
		}
	}
	l.logger.Warn("synthesis retries exhausted", "request_id", requestID)
	return prompts.SynthesisFallback(), nil
}

// forcedCompletion asks for a final answer with tools withheld after
// exhaustion. Failure here falls back to canned text: the run already
// carries the exhaustion signal, and the transcript must still close.
func (l *Loop) forcedCompletion(ctx context.Context, requestID string, transcript *Transcript, res *Result, emit Emit) string {
	msgs := append(transcript.Snapshot(), llm.Message{Role: "user", Content: prompts.ExhaustionInstruction()})
	resp, err := l.callModel(ctx, requestID, l.maxIterations, msgs, nil, nil, emit)
	if err != nil {
		l.logger.Warn("forced completion failed", "request_id", requestID, "error", err)
		if emit != nil {
			emit(prompts.SynthesisFallback())
		}
		return prompts.SynthesisFallback()
	}
	res.InputTokens += resp.InputTokens
	res.OutputTokens += resp.OutputTokens

	if text := strings.TrimSpace(resp.Message.Content); text != "" {
		return text
	}
	if emit != nil {
		emit(prompts.SynthesisFallback())
	}
	return prompts.SynthesisFallback()
}

func (l *Loop) complete(sess *Session, requestID string, res *Result, start time.Time) {
	l.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindRequestComplete,
		Data: map[string]any{
			"request_id": requestID,
			"model":      res.Model,
			"iterations": res.Iterations,
			"exhausted":  res.Exhausted,
			"elapsed_ms": time.Since(start).Milliseconds(),
		},
	})
	l.logger.Info("request complete",
		"request_id", requestID,
		"conversation", sess.ID(),
		"iterations", res.Iterations,
		"exhausted", res.Exhausted,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// archiveTurn records the transcript's latest turn. Best-effort.
func (l *Loop) archiveTurn(ctx context.Context, sess *Session, role, content string) {
	l.archive.Message(ctx, history.Message{
		ConversationID: sess.ID(),
		Seq:            sess.Transcript().Len() - 1,
		Role:           role,
		Content:        content,
	})
}

// ensureCallIDs fills in IDs for providers that omit them (Ollama), so
// result correlation always has a key.
func ensureCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "call_" + uuid.NewString()
		}
	}
	return out
}

func argsJSON(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
