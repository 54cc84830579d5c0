package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJWTRoundtrip(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)

	token, err := service.Generate("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	userID, err := service.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("want u1, got %q", userID)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)
	other := NewJWTService("other-secret", time.Hour)

	token, err := other.Generate("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := service.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestJWTDisabledWithoutSecret(t *testing.T) {
	service := NewJWTService("", time.Hour)
	if service.Enabled() {
		t.Fatalf("empty secret must disable auth")
	}
	if _, err := service.Generate("u1"); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("want ErrAuthDisabled, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	service := NewJWTService("test-secret", time.Hour)
	var gotUserID string
	handler := Middleware(service, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFrom(r.Context())
	}))

	// No credentials.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", rec.Code)
	}

	// Valid token.
	token, err := service.Generate("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with token, got %d", rec.Code)
	}
	if gotUserID != "u1" {
		t.Fatalf("user id not propagated, got %q", gotUserID)
	}

	// Disabled service passes through.
	open := Middleware(NewJWTService("", 0), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled auth must pass through, got %d", rec.Code)
	}
}
