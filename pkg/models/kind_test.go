package models

import "testing"

func TestParseAgentKind(t *testing.T) {
	for _, kind := range AllAgentKinds() {
		parsed, err := ParseAgentKind(string(kind))
		if err != nil {
			t.Fatalf("parse %s: %v", kind, err)
		}
		if parsed != kind {
			t.Fatalf("want %s, got %s", kind, parsed)
		}
	}

	if _, err := ParseAgentKind("astrology"); err == nil {
		t.Fatalf("unknown kind must fail")
	}
	if _, err := ParseAgentKind(""); err == nil {
		t.Fatalf("empty kind must fail")
	}
}

func TestSpecialized(t *testing.T) {
	specialized := map[AgentKind]bool{
		KindGeneral:    false,
		KindWorkout:    true,
		KindDiet:       true,
		KindSchedule:   true,
		KindSupplement: true,
		KindNull:       false,
	}
	for kind, want := range specialized {
		if kind.Specialized() != want {
			t.Fatalf("%s.Specialized() = %v, want %v", kind, kind.Specialized(), want)
		}
	}
}

func TestSessionContextPlanLookup(t *testing.T) {
	sctx := &SessionContext{
		Plans: []PlanSnapshot{{Kind: PlanWorkout, Title: "split"}},
	}
	plan, ok := sctx.Plan(PlanWorkout)
	if !ok || plan.Title != "split" {
		t.Fatalf("plan lookup failed: %+v %v", plan, ok)
	}
	if _, ok := sctx.Plan(PlanMeal); ok {
		t.Fatalf("absent plan must report false")
	}
}
