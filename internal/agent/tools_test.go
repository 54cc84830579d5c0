package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fitstack/coach/internal/storage"
	"github.com/fitstack/coach/pkg/models"
)

func TestProfileToolsWriteThrough(t *testing.T) {
	tests := []struct {
		name  string
		tool  func(storage.ProfileStore) Tool
		input map[string]string
		check func(*models.Profile) string
	}{
		{
			name:  "fitness level",
			tool:  NewSaveFitnessLevelTool,
			input: map[string]string{"level": "advanced"},
			check: func(p *models.Profile) string { return p.ExperienceLevel },
		},
		{
			name:  "primary goal",
			tool:  NewSavePrimaryGoalTool,
			input: map[string]string{"goal": "build muscle"},
			check: func(p *models.Profile) string { return p.PrimaryGoal },
		},
		{
			name:  "schedule",
			tool:  NewSaveScheduleTool,
			input: map[string]string{"schedule": "mornings, 3x week"},
			check: func(p *models.Profile) string { return p.SchedulePrefs },
		},
		{
			name:  "meal preference",
			tool:  NewLogMealPreferenceTool,
			input: map[string]string{"preference": "vegetarian"},
			check: func(p *models.Profile) string { return p.MealPrefs },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := storage.NewMemoryProfileStore()
			if err := profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			input, _ := json.Marshal(tt.input)
			tool := tt.tool(profiles)
			if _, err := tool.Execute(context.Background(), "u1", input); err != nil {
				t.Fatalf("execute: %v", err)
			}

			profile, err := profiles.Get(context.Background(), "u1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			var want string
			for _, v := range tt.input {
				want = v
			}
			if got := tt.check(profile); got != want {
				t.Fatalf("want %q persisted, got %q", want, got)
			}
		})
	}
}

func TestProfileToolRejectsEmptyValue(t *testing.T) {
	profiles := storage.NewMemoryProfileStore()
	if err := profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tool := NewSaveFitnessLevelTool(profiles)
	input, _ := json.Marshal(map[string]string{"level": "   "})
	if _, err := tool.Execute(context.Background(), "u1", input); err == nil {
		t.Fatalf("blank value must be rejected")
	}
}

func TestGeneratePlanToolUpserts(t *testing.T) {
	plans := storage.NewMemoryPlanStore()
	tool := NewGenerateWorkoutPlanTool(plans)

	input, _ := json.Marshal(map[string]any{
		"title": "3-day split",
		"items": []map[string]string{{"name": "squat", "notes": "3x5"}},
	})
	if _, err := tool.Execute(context.Background(), "u1", input); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// A second generation replaces the first, one plan per kind.
	input, _ = json.Marshal(map[string]any{"title": "5-day split"})
	if _, err := tool.Execute(context.Background(), "u1", input); err != nil {
		t.Fatalf("re-execute: %v", err)
	}

	stored, err := plans.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("want one workout plan after upsert, got %d", len(stored))
	}
	if stored[0].Title != "5-day split" {
		t.Fatalf("want newest plan kept, got %q", stored[0].Title)
	}
}

func TestRegistryDefinitionsFiltersUnknown(t *testing.T) {
	profiles := storage.NewMemoryProfileStore()
	registry := NewToolRegistry()
	registry.Register(NewSaveFitnessLevelTool(profiles))
	registry.Register(NewSaveScheduleTool(profiles))

	defs := registry.Definitions([]string{"save_schedule", "missing_tool", "save_fitness_level"})
	if len(defs) != 2 {
		t.Fatalf("want 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "save_schedule" || defs[1].Name != "save_fitness_level" {
		t.Fatalf("definitions out of order: %+v", defs)
	}
}
