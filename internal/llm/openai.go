package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sableagent/sable/internal/httpkit"
)

// OpenAIClient speaks the OpenAI chat-completions dialect. With a
// custom base URL it also covers OpenRouter, DeepSeek, and any other
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible API.
// baseURL may be empty for api.openai.com.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second
	cfg.HTTPClient = httpkit.NewClient(
		httpkit.WithTimeout(0),
		httpkit.WithTransport(t),
	)

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With("provider", "openai"),
	}
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts *Options) (*ChatResponse, error) {
	req := c.buildRequest(model, messages, tools, opts, false)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Provider: "openai", Err: fmt.Errorf("empty choices in response")}
	}

	result := &ChatResponse{
		Model:        resp.Model,
		Message:      convertFromOpenAI(resp.Choices[0].Message),
		Done:         true,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	return result, nil
}

// ChatStream sends a streaming chat request, delivering tokens via callback.
func (c *OpenAIClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, opts *Options, callback StreamCallback) (*ChatResponse, error) {
	if callback == nil {
		return c.Chat(ctx, model, messages, tools, opts)
	}

	req := c.buildRequest(model, messages, tools, opts, true)

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	defer stream.Close()

	var (
		content   string
		toolAccum []openai.ToolCall // accumulated by delta index
		respModel string
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapOpenAIError(err)
		}
		if chunk.Model != "" {
			respModel = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content += delta.Content
			callback(StreamEvent{Kind: KindToken, Token: delta.Content})
		}

		// Tool calls stream as fragments: the first chunk for an index
		// carries ID and name, later chunks append argument JSON.
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(toolAccum) <= idx {
				toolAccum = append(toolAccum, openai.ToolCall{})
			}
			if tc.ID != "" {
				toolAccum[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolAccum[idx].Function.Name = tc.Function.Name
			}
			toolAccum[idx].Function.Arguments += tc.Function.Arguments
		}
	}

	msg := Message{Role: "assistant", Content: content}
	for _, tc := range toolAccum {
		if tc.Function.Name == "" {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:       tc.ID,
			Function: ToolFunction{Name: tc.Function.Name, Arguments: decodeArgs(tc.Function.Arguments)},
		})
	}

	result := &ChatResponse{
		Model:   respModel,
		Message: msg,
		Done:    true,
	}
	callback(StreamEvent{Kind: KindDone, Response: result})
	return result, nil
}

// Ping verifies the endpoint and key by listing models.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	if err != nil {
		return wrapOpenAIError(err)
	}
	return nil
}

func (c *OpenAIClient) buildRequest(model string, messages []Message, tools []map[string]any, opts *Options, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertToOpenAI(messages),
		Tools:    convertToolsToOpenAI(tools),
		Stream:   stream,
	}
	if opts != nil {
		req.Temperature = float32(opts.Temperature)
		if opts.NumPredict > 0 {
			req.MaxTokens = opts.NumPredict
		}
	}
	return req
}

// convertToOpenAI maps internal messages onto go-openai's types.
// Arguments cross this boundary as JSON strings.
func convertToOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func convertFromOpenAI(m openai.ChatCompletionMessage) Message {
	msg := Message{Role: m.Role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:       tc.ID,
			Function: ToolFunction{Name: tc.Function.Name, Arguments: decodeArgs(tc.Function.Arguments)},
		})
	}
	return msg
}

func convertToolsToOpenAI(tools []map[string]any) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	var out []openai.Tool
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  fn["parameters"],
			},
		})
	}
	return out
}

// decodeArgs parses the arguments JSON a compatible endpoint returns.
// Malformed JSON is preserved under "_raw" rather than dropped.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"_raw": raw}
	}
	return args
}

// wrapOpenAIError converts go-openai errors to the shared taxonomy.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			return &AuthError{Provider: "openai", Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return &TransportError{Provider: "openai", Status: apiErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Provider: "openai", Err: err}
}
