package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fitstack/coach/internal/agent"
	"github.com/fitstack/coach/internal/observability"
)

// OpenAIProvider implements agent.LLMProvider for OpenAI's chat models. It
// also serves the cheap low-latency classification calls the orchestrator
// uses to pick an agent kind.
//
// Safe for concurrent use; each Complete call creates an independent stream.
type OpenAIProvider struct {
	BaseProvider

	client          *openai.Client
	defaultModel    string
	classifierModel string
	maxTokens       int
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string

	// DefaultModel is used for generation when a request doesn't name one.
	DefaultModel string

	// ClassifierModel is the low-latency model used by ClassifyIntent.
	ClassifierModel string

	// MaxTokens is the default response cap when a request doesn't set one.
	MaxTokens int

	// MaxRetries bounds retry attempts for retryable failures.
	MaxRetries int

	// RetryDelay is the base delay between retries (linear backoff).
	RetryDelay time.Duration

	// Metrics receives LLM request counts and latencies (optional).
	Metrics *observability.Metrics
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	if config.ClassifierModel == "" {
		config.ClassifierModel = "gpt-4o-mini"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}

	base := NewBaseProvider("openai", config.MaxRetries, config.RetryDelay)
	base.metrics = config.Metrics

	return &OpenAIProvider{
		BaseProvider:    base,
		client:          openai.NewClient(config.APIKey),
		defaultModel:    config.DefaultModel,
		classifierModel: config.ClassifierModel,
		maxTokens:       config.MaxTokens,
	}, nil
}

// Complete sends a completion request and streams the response.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, fmt.Errorf("openai: request is required")
	}

	model := p.model(req.Model)
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertOpenAIMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = p.maxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	start := time.Now()
	var stream *openai.ChatCompletionStream
	err := p.Retry(ctx, IsRetryable, func() error {
		var streamErr error
		stream, streamErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if streamErr != nil {
			return Classify(p.Name(), model, streamErr)
		}
		return nil
	})
	if err != nil {
		p.observe(model, start, err)
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk, 16)
	go p.processStream(ctx, stream, chunks, model, start)
	return chunks, nil
}

// ClassifyIntent maps free text onto one of the candidate labels using the
// configured low-latency model. Returns the label and a confidence score.
func (p *OpenAIProvider) ClassifyIntent(ctx context.Context, message string, candidates []string) (string, float64, error) {
	if len(candidates) == 0 {
		return "", 0, fmt.Errorf("openai: classification candidates are required")
	}

	system := fmt.Sprintf(
		"Classify the user message into exactly one of these categories: %s. "+
			"Respond with only the category name, nothing else.",
		strings.Join(candidates, ", "))

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.classifierModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		err = Classify(p.Name(), p.classifierModel, err)
		p.observe(p.classifierModel, start, err)
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		err = Classify(p.Name(), p.classifierModel, fmt.Errorf("empty classification response"))
		p.observe(p.classifierModel, start, err)
		return "", 0, err
	}
	p.observe(p.classifierModel, start, nil)

	label := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	for _, candidate := range candidates {
		if strings.EqualFold(label, candidate) {
			return candidate, 1.0, nil
		}
	}
	// The model answered outside the candidate set; report it with low
	// confidence and let the caller decide.
	return label, 0, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk, model string, start time.Time) {
	defer close(chunks)
	defer stream.Close()

	// OpenAI streams tool calls incrementally, keyed by index.
	toolCalls := make(map[int]*agent.ToolCall)

	for {
		select {
		case <-ctx.Done():
			p.observe(model, start, ctx.Err())
			chunks <- &agent.CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				for _, tc := range toolCalls {
					if tc.ID != "" && tc.Name != "" {
						chunks <- &agent.CompletionChunk{ToolCall: tc}
					}
				}
				p.observe(model, start, nil)
				chunks <- &agent.CompletionChunk{Done: true}
				return
			}
			err = Classify(p.Name(), model, err)
			p.observe(model, start, err)
			chunks <- &agent.CompletionChunk{Error: err, Done: true}
			return
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &agent.ToolCall{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[index].Input = json.RawMessage(string(toolCalls[index].Input) + tc.Function.Arguments)
			}
		}

		if choice.FinishReason == "tool_calls" {
			for _, tc := range toolCalls {
				if tc.ID != "" && tc.Name != "" {
					chunks <- &agent.CompletionChunk{ToolCall: tc}
				}
			}
			toolCalls = make(map[int]*agent.ToolCall)
		}
	}
}

func (p *OpenAIProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

func convertOpenAIMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Input),
					},
				})
			}
			result = append(result, oaiMsg)
		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return result
}

func convertOpenAITools(tools []agent.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		}
	}
	return result
}
