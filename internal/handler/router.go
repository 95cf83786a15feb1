package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/linkman/internal/metrics"
	"github.com/hitoshi/linkman/internal/middleware"
)

// loginEntryPath は未認証ブラウザナビゲーションのリダイレクト先。
const loginEntryPath = "/auth/google/login"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// RequestLogger はリクエストロギングミドルウェア（nilの場合は無効）
	RequestLogger func(next http.Handler) http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 短縮リンク
	LinkService LinkServiceInterface

	// メトリクス公開用レジストリ（nilの場合は/metricsを公開しない）
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	  （保護ルート） Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）と/health、/metricsはセッションゲートの外に配置する。
// 短縮コード解決（GET /{code}）は未認証時に401ではなくログインへリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.RequestLogger != nil {
		r.Use(deps.RequestLogger)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	linkHandler := NewLinkHandler(deps.LinkService, deps.AuthConfig.BaseURL)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		// ローカル認証
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// OAuthフロー
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)

		// セッション管理
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheusスクレイプ
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// CSRFトークン取得（セッション不要。トークンはログイン前に取得できる）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なAPIルート ---
	// ミドルウェアスタック: Session(401) → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.IdentityResolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/links", func(r chi.Router) {
			r.Get("/", linkHandler.ListLinks)

			// POST /api/links - リンク登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.LinkRegistrationMiddleware()).Post("/", linkHandler.CreateLink)

			r.Delete("/{code}", linkHandler.DeleteLink)
		})
	})

	// --- 短縮コード解決（ブラウザナビゲーション経路） ---
	// 未認証時は401ではなくログインへリダイレクトする
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionRedirectMiddleware(deps.IdentityResolver, loginEntryPath))

		r.Get("/{code}", linkHandler.Redirect)
	})

	return r
}
