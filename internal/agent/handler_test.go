package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/fitstack/coach/internal/storage"
	"github.com/fitstack/coach/pkg/models"
)

// scriptedProvider returns one scripted chunk sequence per Complete call.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts [][]*CompletionChunk
	calls   int

	// lastMessages captures the request messages of the last call.
	lastMessages []CompletionMessage
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p.mu.Lock()
	script := p.scripts[p.calls]
	p.calls++
	p.lastMessages = append([]CompletionMessage(nil), req.Messages...)
	p.mu.Unlock()

	ch := make(chan *CompletionChunk, len(script))
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func testContext(userID string) *models.SessionContext {
	return &models.SessionContext{
		UserID: userID,
		Profile: models.ProfileSummary{
			ExperienceLevel: "beginner",
			PrimaryGoal:     "strength",
		},
	}
}

func TestHandlerCollectsStreamedText(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*CompletionChunk{
		{
			{Text: "Start "},
			{Text: "with squats."},
			{Done: true},
		},
	}}
	handler, err := NewHandler(HandlerConfig{
		Kind:         models.KindWorkout,
		Provider:     provider,
		SystemPrompt: "You are a coach.",
		Context:      testContext("u1"),
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	resp, err := handler.Process(context.Background(), "what first?")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Content != "Start with squats." {
		t.Fatalf("want concatenated chunks, got %q", resp.Content)
	}
	if len(resp.ToolsInvoked) != 0 {
		t.Fatalf("no tools expected, got %v", resp.ToolsInvoked)
	}
}

func TestHandlerExecutesToolLoop(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	if err := stores.Profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	registry := NewToolRegistry()
	registry.Register(NewSaveFitnessLevelTool(stores.Profiles))

	input, _ := json.Marshal(map[string]string{"level": "intermediate"})
	provider := &scriptedProvider{scripts: [][]*CompletionChunk{
		{
			{ToolCall: &ToolCall{ID: "call-1", Name: "save_fitness_level", Input: input}},
			{Done: true},
		},
		{
			{Text: "Noted, you're intermediate."},
			{Done: true},
		},
	}}

	handler, err := NewHandler(HandlerConfig{
		Kind:         models.KindWorkout,
		Provider:     provider,
		Registry:     registry,
		ToolNames:    []string{"save_fitness_level"},
		SystemPrompt: "You are a coach.",
		Context:      testContext("u1"),
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	resp, err := handler.Process(context.Background(), "I train twice a week already")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resp.Content != "Noted, you're intermediate." {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if len(resp.ToolsInvoked) != 1 || resp.ToolsInvoked[0] != "save_fitness_level" {
		t.Fatalf("want save_fitness_level recorded, got %v", resp.ToolsInvoked)
	}

	// The tool wrote through to the store.
	profile, err := stores.Profiles.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ExperienceLevel != "intermediate" {
		t.Fatalf("tool did not persist, profile: %+v", profile)
	}

	// The second request carried the tool result back to the model.
	var sawToolResult bool
	for _, msg := range provider.lastMessages {
		if msg.Role == "tool" && msg.ToolCallID == "call-1" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("tool result message missing from follow-up request: %+v", provider.lastMessages)
	}
}

func TestHandlerIncludesHistoryAndProfile(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]*CompletionChunk{
		{{Text: "ok"}, {Done: true}},
	}}
	sctx := testContext("u1")
	sctx.RecentTurns = []models.ConversationTurn{
		{Role: models.RoleUser, Text: "hi"},
		{Role: models.RoleAssistant, Text: "hello!"},
	}

	handler, err := NewHandler(HandlerConfig{
		Kind:         models.KindGeneral,
		Provider:     provider,
		SystemPrompt: "You are a coach.",
		Context:      sctx,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	if _, err := handler.Process(context.Background(), "next question"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(provider.lastMessages) != 3 {
		t.Fatalf("want history plus query, got %d messages", len(provider.lastMessages))
	}
	if provider.lastMessages[1].Role != "assistant" {
		t.Fatalf("assistant turn not mapped: %+v", provider.lastMessages[1])
	}
}

func TestBuildSystemPromptMentionsPlans(t *testing.T) {
	sctx := testContext("u1")
	sctx.Plans = []models.PlanSnapshot{{
		Kind:  models.PlanWorkout,
		Title: "3-day split",
		Items: []models.PlanItem{{Name: "squat", Notes: "3x5"}},
	}}

	prompt := buildSystemPrompt("Base.", sctx)
	for _, want := range []string{"Base.", "beginner", "strength", "3-day split", "squat"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
