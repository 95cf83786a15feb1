package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/linkman/internal/model"
)

// mockIdentityResolver はIdentityResolverのテスト用実装。
type mockIdentityResolver struct {
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockIdentityResolver) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUnauthenticatedError()
}

func TestSessionMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID == "valid-session" {
				return &model.User{ID: "user-1", Email: "a@x.com"}, nil
			}
			return nil, model.NewUnauthenticatedError()
		},
	}

	mw := NewSessionMiddleware(resolver)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-1" {
		t.Errorf("user ID in context = %q, want %q", capturedUserID, "user-1")
	}
}

func TestSessionMiddleware_MissingCookie_Returns401JSON(t *testing.T) {
	mw := NewSessionMiddleware(&mockIdentityResolver{})

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if handlerCalled {
		t.Error("protected handler must not be called without a session")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("response should be JSON: %v", err)
	}
	if body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
	}
}

func TestSessionMiddleware_StaleSession_Returns401(t *testing.T) {
	// 期限切れやユーザー削除済みのセッションはリゾルバがエラーを返す
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, model.NewUnauthenticatedError()
		},
	}

	mw := NewSessionMiddleware(resolver)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_ResolverError_Returns401(t *testing.T) {
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, errors.New("store unavailable")
		},
	}

	mw := NewSessionMiddleware(resolver)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "any"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSessionRedirectMiddleware_Unauthenticated_RedirectsToLogin(t *testing.T) {
	mw := NewSessionRedirectMiddleware(&mockIdentityResolver{}, "/auth/google/login")

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/abc12345", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// ブラウザナビゲーション経路では401ではなくログインへリダイレクト
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/auth/google/login" {
		t.Errorf("Location = %q, want %q", loc, "/auth/google/login")
	}
}

func TestSessionRedirectMiddleware_ValidSession_PassesThrough(t *testing.T) {
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: "user-2"}, nil
		},
	}

	mw := NewSessionRedirectMiddleware(resolver, "/auth/google/login")

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/abc12345", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-2" {
		t.Errorf("user ID = %q, want %q", capturedUserID, "user-2")
	}
}

func TestUserIDFromContext_MissingUserID_ReturnsError(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	if err == nil {
		t.Error("expected error for context without user ID")
	}
}

func TestContextWithUserID_RoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-42")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext() error = %v", err)
	}
	if userID != "user-42" {
		t.Errorf("user ID = %q, want %q", userID, "user-42")
	}
}
