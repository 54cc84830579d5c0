// Package coach routes user queries to the right agent handler: it loads
// the session context, resolves the agent kind (explicit, cached, or model
// classified), enforces the onboarding access rules, and invokes the
// handler built by the registry.
package coach

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitstack/coach/internal/agent"
	"github.com/fitstack/coach/internal/observability"
	"github.com/fitstack/coach/pkg/models"
)

// Mode selects the latency profile of a route call.
type Mode string

const (
	// ModeText is the default mode. Handlers are constructed fresh per call
	// and classification always invokes the model.
	ModeText Mode = "text"

	// ModeVoice is the latency-sensitive mode. Handler instances and
	// classification results are cached per orchestrator.
	ModeVoice Mode = "voice"
)

// fingerprintLen is the number of characters of the normalized query used
// as the classification cache key in voice mode.
const fingerprintLen = 50

// OnboardingProgress is the caller-supplied onboarding state. The
// orchestrator never derives it; it only branches on it.
type OnboardingProgress struct {
	InProgress bool `json:"in_progress"`
	Step       int  `json:"step,omitempty"`
	TotalSteps int  `json:"total_steps,omitempty"`
}

// RouteRequest carries one logical routing call.
type RouteRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`

	// ExplicitKind, when non-empty, skips classification. Access rules
	// still apply to it.
	ExplicitKind string `json:"explicit_kind,omitempty"`

	Mode       Mode               `json:"mode,omitempty"`
	Onboarding OnboardingProgress `json:"onboarding,omitempty"`
}

// Classification sources reported in logs, metrics, and response metadata.
const (
	sourceExplicit = "explicit"
	sourceModel    = "model"
	sourceCache    = "cache"
	sourceForced   = "forced"
)

// instanceKey identifies a cached voice-mode handler. A handler keeps the
// session context it was constructed with, so the cache must never hand one
// user's handler to another user.
type instanceKey struct {
	userID string
	kind   models.AgentKind
}

// Orchestrator routes queries to agent handlers.
//
// Each Route call runs four phases in order: load the session context,
// resolve the agent kind, construct (or reuse) the handler, and invoke it.
// The orchestrator owns two voice-mode caches: a query-fingerprint cache for
// classification results and a per-user, per-kind handler instance cache.
// Both are unbounded and live for the orchestrator's lifetime.
type Orchestrator struct {
	loader     *ContextLoader
	classifier *KindClassifier
	registry   *Registry
	warmer     agent.LLMProvider

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	mu           sync.Mutex
	fingerprints map[string]models.AgentKind
	instances    map[instanceKey]agent.Handler
}

// OrchestratorConfig assembles an orchestrator. Logger is required; metrics
// and tracer may be nil and are then skipped.
type OrchestratorConfig struct {
	Loader     *ContextLoader
	Classifier *KindClassifier
	Registry   *Registry

	// Warmer is the provider pinged by WarmUp. Usually the generation
	// provider serving the handlers.
	Warmer agent.LLMProvider

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// NewOrchestrator creates an orchestrator with empty caches.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Orchestrator{
		loader:       cfg.Loader,
		classifier:   cfg.Classifier,
		registry:     cfg.Registry,
		warmer:       cfg.Warmer,
		logger:       logger,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		fingerprints: make(map[string]models.AgentKind),
		instances:    make(map[instanceKey]agent.Handler),
	}
}

// Route resolves and invokes the handler for one query.
func (o *Orchestrator) Route(ctx context.Context, req RouteRequest) (*models.AgentResponse, error) {
	ctx, span := o.startSpan(ctx, "coach.route",
		attribute.String("mode", string(req.Mode)),
		attribute.Bool("onboarding", req.Onboarding.InProgress),
	)
	defer span.End()

	mode := req.Mode
	if mode == "" {
		mode = ModeText
	}
	timings := make(map[string]time.Duration, 4)

	// Phase 1: load the session context.
	start := time.Now()
	sctx, err := o.loader.Load(ctx, req.UserID)
	timings["load"] = time.Since(start)
	if err != nil {
		o.finish(ctx, span, req, mode, "", "", false, timings, err)
		return nil, err
	}

	// Phase 2: resolve the agent kind.
	start = time.Now()
	kind, source, err := o.resolveKind(ctx, req, mode)
	timings["classify"] = time.Since(start)
	if err != nil {
		o.finish(ctx, span, req, mode, kind, source, false, timings, err)
		return nil, err
	}

	kind, source, forced, err := o.applyAccessRules(req, kind, source)
	if err != nil {
		o.finish(ctx, span, req, mode, kind, source, forced, timings, err)
		return nil, err
	}

	// Phase 3: construct or reuse the handler.
	start = time.Now()
	handler, err := o.handlerFor(kind, mode, sctx)
	timings["construct"] = time.Since(start)
	if err != nil {
		o.finish(ctx, span, req, mode, kind, source, forced, timings, err)
		return nil, err
	}

	// Phase 4: invoke it.
	start = time.Now()
	resp, err := handler.Process(ctx, req.Query)
	timings["handle"] = time.Since(start)
	if err != nil {
		o.finish(ctx, span, req, mode, kind, source, forced, timings, err)
		return nil, err
	}

	resp.AgentKind = kind
	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any, 2)
	}
	resp.Metadata["classification_source"] = source
	if forced {
		resp.Metadata["forced"] = true
	}

	o.finish(ctx, span, req, mode, kind, source, forced, timings, nil)
	o.recordTools(resp.ToolsInvoked)
	return resp, nil
}

// resolveKind decides which kind handles the query, before access rules.
func (o *Orchestrator) resolveKind(ctx context.Context, req RouteRequest, mode Mode) (models.AgentKind, string, error) {
	if req.ExplicitKind != "" {
		kind, err := models.ParseAgentKind(req.ExplicitKind)
		if err != nil {
			return "", sourceExplicit, &InvalidKindError{Kind: req.ExplicitKind}
		}
		return kind, sourceExplicit, nil
	}

	var fp string
	if mode == ModeVoice {
		fp = fingerprint(req.Query)
		o.mu.Lock()
		cached, ok := o.fingerprints[fp]
		o.mu.Unlock()
		if ok {
			return cached, sourceCache, nil
		}
	}

	kind, err := o.classifier.Classify(ctx, req.Query)
	if err != nil {
		return "", sourceModel, err
	}

	if fp != "" {
		o.mu.Lock()
		o.fingerprints[fp] = kind
		o.mu.Unlock()
	}
	return kind, sourceModel, nil
}

// applyAccessRules enforces the onboarding gate. During onboarding the
// general kind is rejected outright. After onboarding every kind collapses
// to general, except the null kind which stays reachable for the harness.
func (o *Orchestrator) applyAccessRules(req RouteRequest, kind models.AgentKind, source string) (models.AgentKind, string, bool, error) {
	if req.Onboarding.InProgress {
		if kind == models.KindGeneral {
			return kind, source, false, &AccessError{
				UserID:     req.UserID,
				Kind:       kind,
				Reason:     "general agent is not available during onboarding; complete onboarding first",
				Step:       req.Onboarding.Step,
				TotalSteps: req.Onboarding.TotalSteps,
			}
		}
		return kind, source, false, nil
	}

	if kind != models.KindGeneral && kind != models.KindNull {
		return models.KindGeneral, sourceForced, true, nil
	}
	return kind, source, false, nil
}

// handlerFor returns the handler for kind. Voice mode reuses a cached
// instance when present. The cache key includes the user id because a
// cached handler keeps the session context it was first constructed with;
// the same orchestrator serves every user in the process.
func (o *Orchestrator) handlerFor(kind models.AgentKind, mode Mode, sctx *models.SessionContext) (agent.Handler, error) {
	if mode != ModeVoice {
		return o.registry.Create(kind, sctx)
	}

	key := instanceKey{userID: sctx.UserID, kind: kind}
	o.mu.Lock()
	cached, ok := o.instances[key]
	o.mu.Unlock()
	if ok {
		return cached, nil
	}

	handler, err := o.registry.Create(kind, sctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.instances[key] = handler
	o.mu.Unlock()
	return handler, nil
}

// WarmUp issues a minimal provider call so the first voice turn does not
// pay connection setup. Failure is logged at warning level and never
// blocks the session.
func (o *Orchestrator) WarmUp(ctx context.Context) {
	if o.warmer == nil {
		return
	}
	chunks, err := o.warmer.Complete(ctx, &agent.CompletionRequest{
		Messages:  []agent.CompletionMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err == nil {
		for chunk := range chunks {
			if chunk.Error != nil {
				err = chunk.Error
				break
			}
		}
	}
	if err != nil {
		o.logger.Warn(ctx, "provider warm-up failed",
			"provider", o.warmer.Name(),
			"error", err,
		)
		if o.metrics != nil {
			o.metrics.ErrorCounter.WithLabelValues("orchestrator", "warmup").Inc()
		}
	}
}

// startSpan opens a span when tracing is configured; otherwise it returns
// the span already on the context, a no-op outside a trace.
func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, name, attrs...)
}

// finish emits the per-call structured log line, metrics, and span status.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, req RouteRequest, mode Mode, kind models.AgentKind, source string, forced bool, timings map[string]time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	args := []any{
		"user_id", req.UserID,
		"agent_kind", string(kind),
		"mode", string(mode),
		"source", source,
		"forced", forced,
		"status", status,
	}
	if req.Onboarding.InProgress {
		args = append(args, "onboarding_step", req.Onboarding.Step, "onboarding_total", req.Onboarding.TotalSteps)
	}
	for phase, d := range timings {
		args = append(args, phase+"_ms", d.Milliseconds())
	}
	if err != nil {
		args = append(args, "error", err)
		o.logger.Error(ctx, "route call failed", args...)
	} else {
		o.logger.Info(ctx, "route call", args...)
	}

	if o.metrics != nil {
		o.metrics.RouteCounter.WithLabelValues(string(kind), string(mode), status).Inc()
		for phase, d := range timings {
			o.metrics.RoutePhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
		}
		if source != "" {
			o.metrics.ClassificationCounter.WithLabelValues(source).Inc()
		}
	}

	span.SetAttributes(
		attribute.String("agent_kind", string(kind)),
		attribute.String("source", source),
		attribute.Bool("forced", forced),
	)
	if err != nil && o.tracer != nil {
		o.tracer.RecordError(span, err)
	}
}

func (o *Orchestrator) recordTools(names []string) {
	if o.metrics == nil {
		return
	}
	for _, name := range names {
		o.metrics.ToolExecutionCounter.WithLabelValues(name, "success").Inc()
	}
}

// fingerprint normalizes a query into the voice-mode cache key: lowercased,
// trimmed, truncated to fingerprintLen characters. Truncation counts runes
// so a multibyte query is never cut mid-character.
func fingerprint(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(s) > fingerprintLen {
		runes := []rune(s)
		s = string(runes[:fingerprintLen])
	}
	return s
}
