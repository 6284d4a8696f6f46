package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/auth/local"
	"budgetplanner/internal/docstore/memory"
	"budgetplanner/internal/ledger"

	"golang.org/x/crypto/bcrypt"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	return resp
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(postJSON("/api/register",
		`{"email":"carol@example.com","password":"secret123","display_name":"Carol"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	resp := decodeSession(t, rec)
	if resp.Token == "" || resp.UserID == "" {
		t.Error("response should carry token and user id")
	}
	if resp.Email != "carol@example.com" {
		t.Errorf("email = %s", resp.Email)
	}

	var hasCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value == resp.Token {
			hasCookie = true
		}
	}
	if !hasCookie {
		t.Error("register should set the session cookie")
	}
}

func TestRegisterValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"weak password", `{"email":"a@b.com","password":"short"}`, http.StatusUnprocessableEntity},
		{"invalid email", `{"email":"not-an-email","password":"secret123"}`, http.StatusUnprocessableEntity},
		{"malformed body", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(postJSON("/api/register", tt.body))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "dave@example.com")

	rec := env.do(postJSON("/api/register", `{"email":"dave@example.com","password":"secret123"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	var resp errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != auth.ErrEmailInUse.Error() {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "erin@example.com")

	rec := env.do(postJSON("/api/login", `{"email":"erin@example.com","password":"secret123"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeSession(t, rec); resp.Token == "" {
		t.Error("login should mint a token")
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "frank@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"email":"frank@example.com","password":"wrong12"}`},
		{"unknown email", `{"email":"nobody@example.com","password":"secret123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(postJSON("/api/login", tt.body))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	session := env.signUp(t, "grace@example.com")

	req := postJSON("/api/logout", "")
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := env.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if _, err := env.provider.Lookup(context.Background(), session.Token); err == nil {
		t.Error("token should be dead after logout")
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(postJSON("/api/logout", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	docs := memory.New()
	provider := local.NewProvider(docs, local.Options{BcryptCost: bcrypt.MinCost})
	s := NewServer(":0", Options{
		Provider:               provider,
		Store:                  ledger.NewTransactionStore(docs),
		LoginAttemptsPerMinute: 2,
	})
	defer func() { _ = s.Shutdown(context.Background()) }()

	var last int
	for i := 0; i < 3; i++ {
		req := postJSON("/api/login", `{"email":"x@y.com","password":"whatever"}`)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want 429", last)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/login", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/login status = %d, want 405", rec.Code)
	}
}
