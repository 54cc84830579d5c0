package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fitstack/coach/internal/agent/providers"
	"github.com/fitstack/coach/internal/auth"
	"github.com/fitstack/coach/internal/coach"
	"github.com/fitstack/coach/internal/observability"
)

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	UserID       string `json:"user_id"`
	Query        string `json:"query"`
	ExplicitKind string `json:"explicit_kind,omitempty"`
	Mode         string `json:"mode,omitempty"`

	Onboarding struct {
		InProgress bool `json:"in_progress"`
		Step       int  `json:"step,omitempty"`
		TotalSteps int  `json:"total_steps,omitempty"`
	} `json:"onboarding"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	userID := req.UserID
	if authed, ok := auth.UserIDFrom(r.Context()); ok {
		// A validated token pins the user id; the body cannot override it.
		userID = authed
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := routeContext(r.Context(), userID, req.Mode)
	resp, err := s.orchestrator.Route(ctx, coach.RouteRequest{
		UserID:       userID,
		Query:        req.Query,
		ExplicitKind: req.ExplicitKind,
		Mode:         coach.Mode(req.Mode),
		Onboarding: coach.OnboardingProgress{
			InProgress: req.Onboarding.InProgress,
			Step:       req.Onboarding.Step,
			TotalSteps: req.Onboarding.TotalSteps,
		},
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChatStream runs the same route call but answers as server-sent
// events: one content event followed by a done event. Route parameters
// arrive as query string values.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID := q.Get("user_id")
	if authed, ok := auth.UserIDFrom(r.Context()); ok {
		userID = authed
	}
	query := q.Get("query")
	if userID == "" || query == "" {
		writeError(w, http.StatusBadRequest, "user_id and query are required")
		return
	}

	step, _ := strconv.Atoi(q.Get("onboarding_step"))
	total, _ := strconv.Atoi(q.Get("onboarding_total"))

	// The stream outlives the server-wide write timeout; lift the deadline
	// for this response only. Not every ResponseWriter supports deadlines.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := routeContext(r.Context(), userID, q.Get("mode"))
	resp, err := s.orchestrator.Route(ctx, coach.RouteRequest{
		UserID:       userID,
		Query:        query,
		ExplicitKind: q.Get("explicit_kind"),
		Mode:         coach.Mode(q.Get("mode")),
		Onboarding: coach.OnboardingProgress{
			InProgress: q.Get("onboarding") == "in_progress",
			Step:       step,
			TotalSteps: total,
		},
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

// routeContext stamps the user id and mode onto the context so every log
// line emitted under this route call carries them.
func routeContext(ctx context.Context, userID, mode string) context.Context {
	ctx = context.WithValue(ctx, observability.UserIDKey, userID)
	if mode != "" {
		ctx = context.WithValue(ctx, observability.ModeKey, mode)
	}
	return ctx
}

// statusFor maps routing-layer error kinds to HTTP status codes. The error
// text passes through verbatim; it already carries the corrective action.
func statusFor(err error) int {
	var provErr *providers.Error
	switch {
	case errors.Is(err, coach.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, coach.ErrInvalidKind):
		return http.StatusBadRequest
	case errors.Is(err, coach.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, coach.ErrClassification), errors.As(err, &provErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
