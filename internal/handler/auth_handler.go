package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/todoclient/internal/auth"
	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/middleware"
	"github.com/hitoshi/todoclient/internal/model"
)

// OAuthFlow はOAuthハンドラーが必要とするフロー制御のインターフェース。
type OAuthFlow interface {
	Begin(sess *model.Session) (string, error)
	Complete(ctx context.Context, sess *model.Session, cb auth.Callback) auth.Result
}

// AuthHandler はOAuth認可コードフローのHTTPハンドラー。
type AuthHandler struct {
	flow     OAuthFlow
	sessions SessionSaver
	metrics  metrics.MetricsCollector
	cookies  CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow OAuthFlow, sessions SessionSaver, collector metrics.MetricsCollector, cookies CookieConfig) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		flow:     flow,
		sessions: sessions,
		metrics:  collector,
		cookies:  cookies,
	}
}

// Login はOAuthフローを開始し、IDサービスの認可エンドポイントへリダイレクトする。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	authorizeURL, err := h.flow.Begin(sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをセッションに保存してからリダイレクトする
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		handleServiceError(w, err)
		return
	}
	h.sessions.SetCookie(w, sess)

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// 成功時は/dashboardへ、失敗時は/login?error=<理由>へリダイレクトする。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	result := h.flow.Complete(r.Context(), sess, auth.Callback{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})

	// stateは結果に関わらず消費されるため、常に保存する
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		handleServiceError(w, err)
		return
	}
	h.sessions.SetCookie(w, sess)

	if result.State != auth.StateAuthenticated {
		h.metrics.RecordOAuthCallback(string(result.Reason))
		http.Redirect(w, r, loginErrorURL(result.LoginErrorCode()), http.StatusFound)
		return
	}

	h.metrics.RecordOAuthCallback(string(auth.StateAuthenticated))
	setTokenCookies(w, h.cookies, result.Tokens.AccessToken, result.Tokens.RefreshToken)

	slog.Info("oauth login completed", slog.String("session_id_prefix", sessionIDPrefix(sess.ID)))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// loginErrorURL はエラーコード付きのログイン画面URLを返す。
func loginErrorURL(code string) string {
	return middleware.LoginPath + "?error=" + url.QueryEscape(code)
}

// sessionIDPrefix はログ出力用にセッションIDの先頭だけを返す。
func sessionIDPrefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
