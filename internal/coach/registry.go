package coach

import (
	"github.com/fitstack/coach/internal/agent"
	"github.com/fitstack/coach/pkg/models"
)

// System prompts per agent kind. Profile and plan detail is appended at
// construction time from the session context.
const (
	generalPrompt = `You are a friendly fitness coach. You help the user with ` +
		`training, nutrition, scheduling, and recovery questions. Keep answers ` +
		`short, concrete, and grounded in the user's profile and current plans.`

	workoutPrompt = `You are a strength and conditioning coach collecting the ` +
		`user's training background. Ask one question at a time. When the user ` +
		`states their experience level, persist it with the save_fitness_level ` +
		`tool. When enough is known, generate a plan with generate_workout_plan.`

	dietPrompt = `You are a nutrition coach collecting the user's dietary ` +
		`preferences and goals. When the user states a food preference or ` +
		`restriction, persist it with the log_meal_preference tool. When enough ` +
		`is known, generate a plan with generate_meal_plan.`

	schedulePrompt = `You are a scheduling assistant collecting when the user ` +
		`can train. When the user states their availability, persist it with ` +
		`the save_schedule tool.`

	supplementPrompt = `You are a supplement advisor. Give conservative, ` +
		`evidence-based guidance only. When the user states a primary goal, ` +
		`persist it with the save_primary_goal tool.`
)

// kindToolNames maps each kind to the tools its handler may invoke.
var kindToolNames = map[models.AgentKind][]string{
	models.KindGeneral:    {"save_primary_goal", "generate_workout_plan", "generate_meal_plan"},
	models.KindWorkout:    {"save_fitness_level", "save_schedule", "generate_workout_plan"},
	models.KindDiet:       {"log_meal_preference", "generate_meal_plan"},
	models.KindSchedule:   {"save_schedule"},
	models.KindSupplement: {"save_primary_goal"},
}

// Registry constructs handlers for the closed set of agent kinds.
//
// Construction binds the handler to the session context snapshot it was
// created with and performs no I/O.
type Registry struct {
	provider  agent.LLMProvider
	tools     *agent.ToolRegistry
	model     string
	maxTokens int
}

// NewRegistry creates the handler factory. The model and maxTokens apply to
// every LLM-backed kind.
func NewRegistry(provider agent.LLMProvider, tools *agent.ToolRegistry, model string, maxTokens int) *Registry {
	return &Registry{
		provider:  provider,
		tools:     tools,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Create builds the handler for kind, bound to sctx. Kinds outside the
// closed enumeration fail with InvalidKindError.
func (r *Registry) Create(kind models.AgentKind, sctx *models.SessionContext) (agent.Handler, error) {
	var prompt string
	switch kind {
	case models.KindGeneral:
		prompt = generalPrompt
	case models.KindWorkout:
		prompt = workoutPrompt
	case models.KindDiet:
		prompt = dietPrompt
	case models.KindSchedule:
		prompt = schedulePrompt
	case models.KindSupplement:
		prompt = supplementPrompt
	case models.KindNull:
		return agent.NewHandler(agent.HandlerConfig{Kind: kind, Context: sctx})
	default:
		return nil, &InvalidKindError{Kind: string(kind)}
	}

	return agent.NewHandler(agent.HandlerConfig{
		Kind:         kind,
		Provider:     r.provider,
		Registry:     r.tools,
		ToolNames:    kindToolNames[kind],
		SystemPrompt: prompt,
		Model:        r.model,
		MaxTokens:    r.maxTokens,
		Context:      sctx,
	})
}
