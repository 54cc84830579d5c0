package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fitstack/coach/internal/agent"
	"github.com/fitstack/coach/internal/auth"
	"github.com/fitstack/coach/internal/coach"
	"github.com/fitstack/coach/internal/config"
	"github.com/fitstack/coach/internal/observability"
	"github.com/fitstack/coach/internal/storage"
	"github.com/fitstack/coach/pkg/models"
)

type stubClassifier struct {
	label string
}

func (s *stubClassifier) ClassifyIntent(ctx context.Context, message string, candidates []string) (string, float64, error) {
	return s.label, 1.0, nil
}

type stubProvider struct {
	reply string
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 2)
	ch <- &agent.CompletionChunk{Text: s.reply}
	ch <- &agent.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, jwtSecret string) (*Server, storage.StoreSet) {
	t.Helper()
	stores := storage.NewMemoryStoreSet()
	orch := coach.NewOrchestrator(coach.OrchestratorConfig{
		Loader:     coach.NewContextLoader(stores, 0),
		Classifier: coach.NewKindClassifier(&stubClassifier{label: "workout"}),
		Registry:   coach.NewRegistry(&stubProvider{reply: "do squats"}, agent.NewToolRegistry(), "test-model", 256),
		Logger:     observability.NopLogger(),
	})
	srv := New(
		config.ServerConfig{Host: "127.0.0.1", Port: 0},
		orch,
		auth.NewJWTService(jwtSecret, time.Hour),
		observability.NopLogger(),
		nil,
	)
	return srv, stores
}

func postChat(t *testing.T, srv *Server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(payload)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	srv, stores := newTestServer(t, "")
	if err := stores.Profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := postChat(t, srv, map[string]any{
		"user_id": "u1",
		"query":   "I can do 10 pushups",
		"mode":    "voice",
		"onboarding": map[string]any{
			"in_progress": true,
			"step":        2,
			"total_steps": 9,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp models.AgentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AgentKind != models.KindWorkout {
		t.Fatalf("want workout kind, got %s", resp.AgentKind)
	}
	if resp.Content != "do squats" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
}

func TestServerTimeoutsFromConfig(t *testing.T) {
	srv := New(
		config.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: 5 * time.Second, WriteTimeout: 7 * time.Second},
		nil,
		auth.NewJWTService("", time.Hour),
		observability.NopLogger(),
		nil,
	)
	if got := srv.httpServer.ReadTimeout; got != 5*time.Second {
		t.Fatalf("want configured read timeout, got %v", got)
	}
	if got := srv.httpServer.WriteTimeout; got != 7*time.Second {
		t.Fatalf("want configured write timeout, got %v", got)
	}
}

func TestRouteContextStampsIdentity(t *testing.T) {
	ctx := routeContext(context.Background(), "u1", "voice")
	if got, _ := ctx.Value(observability.UserIDKey).(string); got != "u1" {
		t.Fatalf("want user id on context, got %q", got)
	}
	if got, _ := ctx.Value(observability.ModeKey).(string); got != "voice" {
		t.Fatalf("want mode on context, got %q", got)
	}
	if got := routeContext(context.Background(), "u1", "").Value(observability.ModeKey); got != nil {
		t.Fatalf("empty mode must not be stamped, got %v", got)
	}
}

func TestChatErrorStatusMapping(t *testing.T) {
	srv, stores := newTestServer(t, "")
	if err := stores.Profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "missing profile",
			body: map[string]any{"user_id": "ghost", "query": "hi"},
			want: http.StatusNotFound,
		},
		{
			name: "invalid kind",
			body: map[string]any{"user_id": "u1", "query": "hi", "explicit_kind": "astrology"},
			want: http.StatusBadRequest,
		},
		{
			name: "general during onboarding",
			body: map[string]any{
				"user_id": "u1", "query": "hi", "explicit_kind": "general",
				"onboarding": map[string]any{"in_progress": true, "step": 1, "total_steps": 4},
			},
			want: http.StatusForbidden,
		},
		{
			name: "missing query",
			body: map[string]any{"user_id": "u1"},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, srv, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("want %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body must be JSON: %v", err)
			}
			if body["error"] == "" {
				t.Fatalf("error body missing message: %s", rec.Body)
			}
		})
	}
}

func TestChatStreamEmitsSSE(t *testing.T) {
	srv, stores := newTestServer(t, "")
	if err := stores.Profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/chat/stream?user_id=u1&query=hello&onboarding=in_progress&onboarding_step=1&onboarding_total=4", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("want SSE content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: message") || !strings.Contains(body, "event: done") {
		t.Fatalf("missing SSE events:\n%s", body)
	}
	if !strings.Contains(body, "do squats") {
		t.Fatalf("response content missing from stream:\n%s", body)
	}
}

func TestAuthPinsUserID(t *testing.T) {
	srv, stores := newTestServer(t, "test-secret")
	if err := stores.Profiles.Create(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	token, err := auth.NewJWTService("test-secret", time.Hour).Generate("u1")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	// Body claims another user; the token wins.
	payload, _ := json.Marshal(map[string]any{
		"user_id": "someone-else", "query": "hi", "explicit_kind": "null",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(payload)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}

	// Without a token the request is rejected outright.
	rec = postChat(t, srv, map[string]any{"user_id": "u1", "query": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}
}
