package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitstack/coach/pkg/models"
)

func newSQLiteSet(t *testing.T) StoreSet {
	t.Helper()
	set, err := NewSQLiteStoreSet(filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { set.Close() })
	return set
}

func TestSQLiteProfileRoundtrip(t *testing.T) {
	set := newSQLiteSet(t)
	ctx := context.Background()

	profile := &models.Profile{UserID: "u1", ExperienceLevel: "beginner", PrimaryGoal: "strength"}
	if err := set.Profiles.Create(ctx, profile); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := set.Profiles.Create(ctx, profile); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	got, err := set.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ExperienceLevel != "beginner" || got.PrimaryGoal != "strength" {
		t.Fatalf("roundtrip lost fields: %+v", got)
	}

	got.MealPrefs = "vegetarian"
	if err := set.Profiles.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := set.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.MealPrefs != "vegetarian" {
		t.Fatalf("update lost: %+v", updated)
	}

	if err := set.Profiles.Update(ctx, &models.Profile{UserID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of missing profile: want ErrNotFound, got %v", err)
	}
	if _, err := set.Profiles.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get of missing profile: want ErrNotFound, got %v", err)
	}
}

func TestSQLitePlanUpsert(t *testing.T) {
	set := newSQLiteSet(t)
	ctx := context.Background()

	for _, title := range []string{"v1", "v2"} {
		err := set.Plans.Put(ctx, "u1", &models.PlanSnapshot{
			Kind:        models.PlanWorkout,
			Title:       title,
			Items:       []models.PlanItem{{Name: "squat", Notes: "3x5"}},
			GeneratedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("put %s: %v", title, err)
		}
	}

	plans, err := set.Plans.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("want one plan after upsert, got %d", len(plans))
	}
	if plans[0].Title != "v2" {
		t.Fatalf("want newest plan, got %q", plans[0].Title)
	}
	if len(plans[0].Items) != 1 || plans[0].Items[0].Name != "squat" {
		t.Fatalf("items did not roundtrip: %+v", plans[0].Items)
	}
}

func TestSQLiteRecentTurnsOrder(t *testing.T) {
	set := newSQLiteSet(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		err := set.Conversations.Append(ctx, "u1", &models.ConversationTurn{
			ID:        fmt.Sprintf("t%d", i),
			Role:      models.RoleUser,
			Text:      fmt.Sprintf("turn %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := set.Conversations.Recent(ctx, "u1", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("want 4 turns, got %d", len(turns))
	}
	if turns[0].Text != "turn 2" || turns[3].Text != "turn 5" {
		t.Fatalf("want newest four oldest-first, got %+v", turns)
	}
}
