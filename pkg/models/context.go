package models

import "time"

// Role indicates the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is a single {role, text} pair from the conversation log.
//
// Richer message modeling (attachments, tool calls) belongs to the provider
// layer; at the routing boundary a turn is just who said what, when.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileSummary holds the scalar profile fields handlers prompt with.
type ProfileSummary struct {
	ExperienceLevel string `json:"experience_level"`
	PrimaryGoal     string `json:"primary_goal"`
}

// PlanKind distinguishes the plan snapshot types carried in a session context.
type PlanKind string

const (
	PlanWorkout PlanKind = "workout"
	PlanMeal    PlanKind = "meal"
)

// PlanItem is one entry of a plan (an exercise, a meal).
type PlanItem struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

// PlanSnapshot is a small read-only copy of a user's current plan.
type PlanSnapshot struct {
	Kind        PlanKind   `json:"kind"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Items       []PlanItem `json:"items,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// SessionContext is an immutable snapshot of user state assembled once per
// route call and passed by reference into agent handlers.
//
// Once constructed no field is mutated; a call that needs different data
// builds a new context. Missing nested data is represented by empty values
// (empty slices, zero structs), never nil dereferences downstream.
type SessionContext struct {
	// UserID is the opaque identifier of the user, foreign to the profile store.
	UserID string `json:"user_id"`

	// Profile holds the scalar profile fields, zero-valued when not yet set.
	Profile ProfileSummary `json:"profile"`

	// Plans holds the cached plan snapshots, empty when none generated yet.
	Plans []PlanSnapshot `json:"plans,omitempty"`

	// RecentTurns holds the most recent conversation turns oldest-first,
	// capped by the loader's history limit to bound prompt size.
	RecentTurns []ConversationTurn `json:"recent_turns,omitempty"`

	// LoadedAt records when the snapshot was assembled. Staleness reasoning
	// only; nothing enforces freshness beyond one load per route call.
	LoadedAt time.Time `json:"loaded_at"`
}

// Plan returns the snapshot of the given kind and whether one is present.
func (c *SessionContext) Plan(kind PlanKind) (PlanSnapshot, bool) {
	for _, p := range c.Plans {
		if p.Kind == kind {
			return p, true
		}
	}
	return PlanSnapshot{}, false
}
