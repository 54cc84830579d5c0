// Package agent holds the handler and LLM-provider layer of the coaching
// service: the provider abstraction, the per-kind coach handlers, and the
// side-effecting tools handlers may invoke.
package agent

import (
	"context"
	"encoding/json"
)

// LLMProvider is the interface for Large Language Model backends.
//
// Implementations handle the specifics of a vendor API (Anthropic, OpenAI)
// while presenting a unified streaming interface. Implementations must be
// safe for concurrent use; each Complete call creates an independent stream.
type LLMProvider interface {
	// Complete sends a prompt and returns a streaming response. The channel
	// is closed when the response is finished or the context is cancelled.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name, used for logging and metrics labels.
	Name() string
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Model specifies which model to use. Empty selects the provider default.
	Model string `json:"model"`

	// System is the system prompt, handled separately from messages.
	System string `json:"system,omitempty"`

	// Messages is the conversation history, oldest-first.
	Messages []CompletionMessage `json:"messages"`

	// Tools lists callable tool definitions exposed to the model.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// MaxTokens caps the response length. Zero selects the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness.
	Temperature float32 `json:"temperature,omitempty"`
}

// CompletionMessage is a single turn in the provider conversation.
type CompletionMessage struct {
	Role    string `json:"role"` // "user", "assistant", "tool"
	Content string `json:"content"`

	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls carries calls issued by an assistant turn being replayed.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolDefinition describes a callable tool exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Usage reports token consumption for a completed request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionChunk is one streamed fragment of a completion.
//
// Exactly one of Text, ToolCall, Usage, or Error is meaningful per chunk;
// Done is set on the final chunk before the channel closes.
type CompletionChunk struct {
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	Usage    *Usage    `json:"usage,omitempty"`
	Done     bool      `json:"done,omitempty"`
	Error    error     `json:"-"`
}
