package models

import "fmt"

// AgentKind identifies which specialized coach handles a query.
//
// The set of kinds is closed: every kind the system knows about is declared
// here, and the factory in internal/coach switches over this enumeration
// exhaustively. Adding a kind means extending this list and that switch.
type AgentKind string

const (
	// KindGeneral is the post-onboarding coach that handles any topic.
	KindGeneral AgentKind = "general"

	// KindWorkout handles training-related onboarding and questions.
	KindWorkout AgentKind = "workout"

	// KindDiet handles nutrition-related onboarding and questions.
	KindDiet AgentKind = "diet"

	// KindSchedule handles availability and session scheduling.
	KindSchedule AgentKind = "schedule"

	// KindSupplement handles supplement preferences and guidance.
	KindSupplement AgentKind = "supplement"

	// KindNull is a deterministic no-op handler used by the test harness.
	// It is exempt from the post-onboarding general override.
	KindNull AgentKind = "null"
)

// AllAgentKinds returns the closed set of kinds in a stable order.
func AllAgentKinds() []AgentKind {
	return []AgentKind{
		KindGeneral,
		KindWorkout,
		KindDiet,
		KindSchedule,
		KindSupplement,
		KindNull,
	}
}

// Valid reports whether k is a member of the closed enumeration.
func (k AgentKind) Valid() bool {
	switch k {
	case KindGeneral, KindWorkout, KindDiet, KindSchedule, KindSupplement, KindNull:
		return true
	default:
		return false
	}
}

// Specialized reports whether k is one of the onboarding-phase kinds.
// The general and null kinds are not specialized.
func (k AgentKind) Specialized() bool {
	switch k {
	case KindWorkout, KindDiet, KindSchedule, KindSupplement:
		return true
	default:
		return false
	}
}

// ParseAgentKind converts a string into an AgentKind.
func ParseAgentKind(s string) (AgentKind, error) {
	kind := AgentKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
	return kind, nil
}
