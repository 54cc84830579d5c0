package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fitstack/coach/internal/storage"
	"github.com/fitstack/coach/pkg/models"
)

// Tool is a named side-effecting operation a handler may invoke while
// producing its answer. The orchestrator treats tools as opaque; it only
// records their names in the response envelope.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description tells the LLM when to use the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() map[string]any

	// Execute runs the tool with the given JSON input for the given user.
	Execute(ctx context.Context, userID string, input json.RawMessage) (string, error)
}

// ToolRegistry holds the tools available to a handler.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice replaces it.
func (r *ToolRegistry) Register(tool Tool) {
	if tool == nil || tool.Name() == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns tool definitions for the given names, skipping
// unknown ones, in the order given.
func (r *ToolRegistry) Definitions(names []string) []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}
	return defs
}

// profileFieldTool persists a single free-text profile field.
type profileFieldTool struct {
	name        string
	description string
	field       string
	argument    string
	profiles    storage.ProfileStore
}

func (t *profileFieldTool) Name() string        { return t.name }
func (t *profileFieldTool) Description() string { return t.description }

func (t *profileFieldTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			t.argument: map[string]any{
				"type":        "string",
				"description": t.description,
			},
		},
		"required": []string{t.argument},
	}
}

func (t *profileFieldTool) Execute(ctx context.Context, userID string, input json.RawMessage) (string, error) {
	var args map[string]string
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("%s: invalid input: %w", t.name, err)
	}
	value := strings.TrimSpace(args[t.argument])
	if value == "" {
		return "", fmt.Errorf("%s: %q is required", t.name, t.argument)
	}

	profile, err := t.profiles.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: load profile: %w", t.name, err)
	}

	switch t.field {
	case "experience_level":
		profile.ExperienceLevel = value
	case "primary_goal":
		profile.PrimaryGoal = value
	case "schedule_prefs":
		profile.SchedulePrefs = value
	case "meal_prefs":
		profile.MealPrefs = value
	default:
		return "", fmt.Errorf("%s: unknown profile field %q", t.name, t.field)
	}

	if err := t.profiles.Update(ctx, profile); err != nil {
		return "", fmt.Errorf("%s: save profile: %w", t.name, err)
	}
	return fmt.Sprintf("saved %s", t.field), nil
}

// NewSaveFitnessLevelTool persists the user's self-reported experience level.
func NewSaveFitnessLevelTool(profiles storage.ProfileStore) Tool {
	return &profileFieldTool{
		name:        "save_fitness_level",
		description: "Save the user's fitness experience level (beginner, intermediate, advanced).",
		field:       "experience_level",
		argument:    "level",
		profiles:    profiles,
	}
}

// NewSavePrimaryGoalTool persists the user's primary training goal.
func NewSavePrimaryGoalTool(profiles storage.ProfileStore) Tool {
	return &profileFieldTool{
		name:        "save_primary_goal",
		description: "Save the user's primary fitness goal (lose weight, build muscle, endurance).",
		field:       "primary_goal",
		argument:    "goal",
		profiles:    profiles,
	}
}

// NewSaveScheduleTool persists the user's availability preferences.
func NewSaveScheduleTool(profiles storage.ProfileStore) Tool {
	return &profileFieldTool{
		name:        "save_schedule",
		description: "Save the user's weekly training availability.",
		field:       "schedule_prefs",
		argument:    "schedule",
		profiles:    profiles,
	}
}

// NewLogMealPreferenceTool persists the user's dietary preferences.
func NewLogMealPreferenceTool(profiles storage.ProfileStore) Tool {
	return &profileFieldTool{
		name:        "log_meal_preference",
		description: "Record a dietary preference or restriction for the user.",
		field:       "meal_prefs",
		argument:    "preference",
		profiles:    profiles,
	}
}

// generatePlanTool writes a placeholder plan snapshot the user can iterate on.
type generatePlanTool struct {
	kind  models.PlanKind
	plans storage.PlanStore
}

func (t *generatePlanTool) Name() string {
	return fmt.Sprintf("generate_%s_plan", t.kind)
}

func (t *generatePlanTool) Description() string {
	return fmt.Sprintf("Generate and save a new %s plan for the user.", t.kind)
}

func (t *generatePlanTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short title for the plan.",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "One-paragraph summary of the plan.",
			},
			"items": map[string]any{
				"type":        "array",
				"description": "Plan entries.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"notes": map[string]any{"type": "string"},
					},
					"required": []string{"name"},
				},
			},
		},
		"required": []string{"title"},
	}
}

func (t *generatePlanTool) Execute(ctx context.Context, userID string, input json.RawMessage) (string, error) {
	var args struct {
		Title   string            `json:"title"`
		Summary string            `json:"summary"`
		Items   []models.PlanItem `json:"items"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("%s: invalid input: %w", t.Name(), err)
	}
	if strings.TrimSpace(args.Title) == "" {
		return "", fmt.Errorf("%s: title is required", t.Name())
	}

	plan := &models.PlanSnapshot{
		Kind:        t.kind,
		Title:       args.Title,
		Summary:     args.Summary,
		Items:       args.Items,
		GeneratedAt: time.Now(),
	}
	if err := t.plans.Put(ctx, userID, plan); err != nil {
		return "", fmt.Errorf("%s: save plan: %w", t.Name(), err)
	}
	return fmt.Sprintf("saved %s plan %q", t.kind, args.Title), nil
}

// NewGenerateWorkoutPlanTool saves a workout plan snapshot.
func NewGenerateWorkoutPlanTool(plans storage.PlanStore) Tool {
	return &generatePlanTool{kind: models.PlanWorkout, plans: plans}
}

// NewGenerateMealPlanTool saves a meal plan snapshot.
func NewGenerateMealPlanTool(plans storage.PlanStore) Tool {
	return &generatePlanTool{kind: models.PlanMeal, plans: plans}
}
