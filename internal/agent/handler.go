package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitstack/coach/pkg/models"
)

// Handler processes a query for one agent kind, bound to the session
// context it was constructed with.
type Handler interface {
	// Kind returns the agent kind this handler serves.
	Kind() models.AgentKind

	// Process answers the query, possibly invoking tools, and returns the
	// normalized response envelope.
	Process(ctx context.Context, query string) (*models.AgentResponse, error)
}

// maxToolIterations bounds the tool-call loop inside a single Process call.
const maxToolIterations = 4

// HandlerConfig assembles a coach handler.
type HandlerConfig struct {
	Kind         models.AgentKind
	Provider     LLMProvider
	Registry     *ToolRegistry
	ToolNames    []string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Context      *models.SessionContext
}

// coachHandler is the LLM-backed handler shared by all non-null kinds.
// The kinds differ only in system prompt and tool set.
type coachHandler struct {
	kind      models.AgentKind
	provider  LLMProvider
	registry  *ToolRegistry
	toolNames []string
	system    string
	model     string
	maxTokens int
	sctx      *models.SessionContext
}

// NewHandler creates an LLM-backed handler for the given kind.
func NewHandler(cfg HandlerConfig) (Handler, error) {
	if cfg.Kind == models.KindNull {
		return &NullHandler{sctx: cfg.Context}, nil
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("handler %s: provider is required", cfg.Kind)
	}
	if cfg.Context == nil {
		return nil, fmt.Errorf("handler %s: session context is required", cfg.Kind)
	}
	return &coachHandler{
		kind:      cfg.Kind,
		provider:  cfg.Provider,
		registry:  cfg.Registry,
		toolNames: cfg.ToolNames,
		system:    buildSystemPrompt(cfg.SystemPrompt, cfg.Context),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		sctx:      cfg.Context,
	}, nil
}

func (h *coachHandler) Kind() models.AgentKind {
	return h.kind
}

func (h *coachHandler) Process(ctx context.Context, query string) (*models.AgentResponse, error) {
	messages := make([]CompletionMessage, 0, len(h.sctx.RecentTurns)+1)
	for _, turn := range h.sctx.RecentTurns {
		role := "user"
		if turn.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, CompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, CompletionMessage{Role: "user", Content: query})

	var toolDefs []ToolDefinition
	if h.registry != nil {
		toolDefs = h.registry.Definitions(h.toolNames)
	}

	var content strings.Builder
	var toolsInvoked []string

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		chunks, err := h.provider.Complete(ctx, &CompletionRequest{
			Model:     h.model,
			System:    h.system,
			Messages:  messages,
			Tools:     toolDefs,
			MaxTokens: h.maxTokens,
		})
		if err != nil {
			return nil, err
		}

		var turnText strings.Builder
		var calls []ToolCall
		for chunk := range chunks {
			switch {
			case chunk.Error != nil:
				return nil, chunk.Error
			case chunk.Text != "":
				turnText.WriteString(chunk.Text)
			case chunk.ToolCall != nil:
				calls = append(calls, *chunk.ToolCall)
			}
		}
		content.WriteString(turnText.String())

		if len(calls) == 0 {
			break
		}

		// Replay the assistant turn, execute each call, and feed results back.
		messages = append(messages, CompletionMessage{
			Role:      "assistant",
			Content:   turnText.String(),
			ToolCalls: calls,
		})
		for _, call := range calls {
			toolsInvoked = append(toolsInvoked, call.Name)
			result := h.executeTool(ctx, call)
			messages = append(messages, CompletionMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return &models.AgentResponse{
		Content:      content.String(),
		AgentKind:    h.kind,
		ToolsInvoked: toolsInvoked,
	}, nil
}

func (h *coachHandler) executeTool(ctx context.Context, call ToolCall) string {
	if h.registry == nil {
		return fmt.Sprintf("error: tool %q not available", call.Name)
	}
	tool, ok := h.registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
	result, err := tool.Execute(ctx, h.sctx.UserID, call.Input)
	if err != nil {
		// Tool failures go back to the model as text so it can recover.
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

func buildSystemPrompt(base string, sctx *models.SessionContext) string {
	var sb strings.Builder
	sb.WriteString(base)

	if sctx.Profile.ExperienceLevel != "" || sctx.Profile.PrimaryGoal != "" {
		sb.WriteString("\n\nUser profile:")
		if sctx.Profile.ExperienceLevel != "" {
			sb.WriteString("\n- Experience level: ")
			sb.WriteString(sctx.Profile.ExperienceLevel)
		}
		if sctx.Profile.PrimaryGoal != "" {
			sb.WriteString("\n- Primary goal: ")
			sb.WriteString(sctx.Profile.PrimaryGoal)
		}
	}

	for _, plan := range sctx.Plans {
		sb.WriteString(fmt.Sprintf("\n\nCurrent %s plan: %s", plan.Kind, plan.Title))
		if plan.Summary != "" {
			sb.WriteString("\n")
			sb.WriteString(plan.Summary)
		}
		for _, item := range plan.Items {
			sb.WriteString("\n- ")
			sb.WriteString(item.Name)
			if item.Notes != "" {
				sb.WriteString(" (")
				sb.WriteString(item.Notes)
				sb.WriteString(")")
			}
		}
	}

	return sb.String()
}

// NullHandler is the deterministic no-op handler used by the test harness.
// It never calls a provider or a tool.
type NullHandler struct {
	sctx *models.SessionContext
}

// Kind returns models.KindNull.
func (h *NullHandler) Kind() models.AgentKind {
	return models.KindNull
}

// Process echoes the query without side effects.
func (h *NullHandler) Process(ctx context.Context, query string) (*models.AgentResponse, error) {
	return &models.AgentResponse{
		Content:   fmt.Sprintf("null handler received: %s", query),
		AgentKind: models.KindNull,
	}, nil
}
