// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/linkman/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// IdentityResolver はセッションIDから現在のユーザーを解決するインターフェース。
// 解決のたびにユーザー行を再参照するため、削除済みユーザーのセッションは
// 次のリクエストで即座に無効になる。
type IdentityResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// ユーザーへ解決するミドルウェアを返す。
// 解決できたユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 UnauthorizedをJSONで返す。
func NewSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return newSessionMiddleware(resolver, rejectWithJSON)
}

// NewSessionRedirectMiddleware はNewSessionMiddlewareと同じ検証を行うが、
// 未認証の場合は401ではなくログインページへ303リダイレクトする。
// 短縮コード解決のようなブラウザナビゲーション経路で使用する。
func NewSessionRedirectMiddleware(resolver IdentityResolver, loginPath string) func(next http.Handler) http.Handler {
	return newSessionMiddleware(resolver, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})
}

func newSessionMiddleware(resolver IdentityResolver, reject func(w http.ResponseWriter, r *http.Request)) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				reject(w, r)
				return
			}

			// 2. セッションをユーザーへ解決（期限切れ・ユーザー削除済みはエラー）
			user, err := resolver.GetCurrentUser(r.Context(), cookie.Value)
			if err != nil {
				if _, ok := model.AsAPIError(err); !ok {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				}
				reject(w, r)
				return
			}

			// 3. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectWithJSON は未認証リクエストへの標準の401レスポンス。
func rejectWithJSON(w http.ResponseWriter, r *http.Request) {
	WriteAPIError(w, model.NewUnauthenticatedError())
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
