package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/linkman/internal/model"
)

// TestMiddlewareChain_SessionThenRateLimit はセッションゲートと
// レート制限を重ねた保護ルートの挙動を検証する。
func TestMiddlewareChain_SessionThenRateLimit(t *testing.T) {
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID == "valid-session" {
				return &model.User{ID: "user-chain"}, nil
			}
			return nil, model.NewUnauthenticatedError()
		},
	}

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralPerMinute: 2,
		LinkRegPerMinute: 20,
		CleanupInterval:  time.Hour,
	})
	defer rl.Stop()

	sessionMW := NewSessionMiddleware(resolver)
	chained := sessionMW(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	// 未認証: レート制限より先にセッションゲートで拒否される
	reqNoSession := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	w := httptest.NewRecorder()
	chained.ServeHTTP(w, reqNoSession)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", w.Code)
	}

	// 認証済み: バースト上限までは通り、超過で429
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
		w := httptest.NewRecorder()
		chained.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w = httptest.NewRecorder()
	chained.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

// TestMiddlewareChain_CSRFAfterSession は状態変更リクエストが
// セッションゲート通過後にCSRF検証されることを検証する。
func TestMiddlewareChain_CSRFAfterSession(t *testing.T) {
	resolver := &mockIdentityResolver{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: "user-csrf"}, nil
		},
	}

	sessionMW := NewSessionMiddleware(resolver)
	csrfMW := NewCSRFMiddleware(CSRFConfig{})
	chained := sessionMW(csrfMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	// CSRFトークンなしのPOSTは403
	req := httptest.NewRequest(http.MethodPost, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid"})
	w := httptest.NewRecorder()
	chained.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("POST without CSRF token: status = %d, want 403", w.Code)
	}

	// トークンをCookieとヘッダーの両方に載せれば通る
	req = httptest.NewRequest(http.MethodPost, "/api/links", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "token-abc"})
	req.Header.Set("X-CSRF-Token", "token-abc")
	w = httptest.NewRecorder()
	chained.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("POST with CSRF token: status = %d, want 201", w.Code)
	}
}
