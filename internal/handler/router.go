package handler

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/middleware"
)

// SessionManager はルーターが必要とするセッション操作のインターフェース。
// session.Managerが実装する。
type SessionManager interface {
	middleware.SessionLoader
	SessionTerminator
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Sessions     SessionManager
	Introspector middleware.TokenIntrospector
	Production   bool

	// 認証
	OAuthFlow OAuthFlow
	Identity  IdentityService
	Account   AccountHandlerConfig

	// ToDo
	Todos TodoStore

	// 画面・静的ファイル
	Views  fs.FS
	Static fs.FS

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Session → Auth(保護ルートのみ)
//
// /health、/metrics、静的ファイルはセッションを作らない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Production))

	pages := NewPageHandler(deps.Views)
	authHandler := NewAuthHandler(deps.OAuthFlow, deps.Sessions, deps.Metrics, deps.Account.Cookies)
	accountHandler := NewAccountHandler(deps.Identity, deps.Sessions, deps.Account)
	todoHandler := NewTodoHandler(deps.Todos, deps.Metrics)

	// --- セッション不要のルート ---

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	static := http.FileServerFS(deps.Static)
	r.Handle("/js/*", static)
	r.Handle("/css/*", static)

	// --- セッションを使うルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))

		// 画面
		r.Get("/", pages.Serve("index.html"))
		r.Get("/login", pages.Serve("login.html"))
		r.Get("/register", pages.Serve("register.html"))

		// OAuthフロー
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.Login)
			r.Get("/callback", authHandler.Callback)
		})

		// 直接ログイン・登録・ログアウト
		r.Post("/api/login", accountHandler.Login)
		r.Post("/api/register", accountHandler.Register)
		r.Post("/api/logout", accountHandler.Logout)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → Auth
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Introspector, deps.Metrics))

			r.Get("/dashboard", pages.Serve("dashboard.html"))
			r.Get("/api/user", accountHandler.User)

			r.Route("/api/todos", func(r chi.Router) {
				r.Get("/", todoHandler.List)
				r.Post("/", todoHandler.Create)
				r.Put("/{id}", todoHandler.Update)
				r.Delete("/{id}", todoHandler.Delete)
			})
		})
	})

	return r
}
