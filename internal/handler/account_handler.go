package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoclient/internal/identity"
	"github.com/hitoshi/todoclient/internal/middleware"
	"github.com/hitoshi/todoclient/internal/model"
)

// IDサービスのエラーにmessageがない場合の既定メッセージ。
const (
	loginFailedMessage        = "Login failed"
	registrationFailedMessage = "Registration failed"
)

// IdentityService はアカウントハンドラーが必要とするIDサービスのインターフェース。
type IdentityService interface {
	Login(ctx context.Context, email, password string) (*identity.LoginResult, error)
	Register(ctx context.Context, fields json.RawMessage) (*identity.RegisterResult, error)
	Logout(ctx context.Context, accessToken string) error
}

// SessionTerminator はログアウト時にセッションを破棄するためのインターフェース。
type SessionTerminator interface {
	SessionSaver
	Destroy(ctx context.Context, id string) error
	ClearCookie(w http.ResponseWriter)
}

// AccountHandlerConfig はアカウントハンドラーの設定。
type AccountHandlerConfig struct {
	Cookies CookieConfig
	// DirectLoginSetCookies がtrueの場合、直接ログインでもトークンCookieを発行する。
	DirectLoginSetCookies bool
}

// AccountHandler は直接ログイン・登録・ユーザー情報・ログアウトのHTTPハンドラー。
type AccountHandler struct {
	identity IdentityService
	sessions SessionTerminator
	config   AccountHandlerConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(identity IdentityService, sessions SessionTerminator, config AccountHandlerConfig) *AccountHandler {
	return &AccountHandler{
		identity: identity,
		sessions: sessions,
		config:   config,
	}
}

// loginRequest は直接ログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインし、トークンをセッションに保存する。
// POST /api/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeUpstreamError(w, err, loginFailedMessage)
		return
	}

	sess.AccessToken = result.AccessToken
	sess.RefreshToken = result.RefreshToken
	sess.User = result.User
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		handleServiceError(w, err)
		return
	}
	h.sessions.SetCookie(w, sess)

	if h.config.DirectLoginSetCookies {
		setTokenCookies(w, h.config.Cookies, result.AccessToken, result.RefreshToken)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    result.User,
	})
}

// Register は登録フォームの内容をそのままIDサービスに転送する。
// POST /api/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err == nil && len(bytes.TrimSpace(body)) == 0 {
		// 空ボディは{}として転送する
		body = []byte("{}")
	}
	if err != nil || !json.Valid(body) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.identity.Register(r.Context(), json.RawMessage(body))
	if err != nil {
		writeUpstreamError(w, err, registrationFailedMessage)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": result.Message,
	})
}

// User はセッションに保存されたユーザー情報を返す。
// GET /api/user
func (h *AccountHandler) User(w http.ResponseWriter, r *http.Request) {
	var user *model.User
	if sess, err := middleware.SessionFromContext(r.Context()); err == nil {
		user = sess.User
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"user": user,
	})
}

// Logout はIDサービスのトークンを失効させ、セッションとCookieを破棄する。
// IDサービスの失敗はログに残すだけで、常に成功を返す。
// POST /api/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err == nil {
		if sess.AccessToken != "" {
			if err := h.identity.Logout(r.Context(), sess.AccessToken); err != nil {
				slog.Warn("identity logout failed", slog.String("error", err.Error()))
			}
		}
		if err := h.sessions.Destroy(r.Context(), sess.ID); err != nil {
			slog.Warn("failed to destroy session", slog.String("error", err.Error()))
		}
	}

	h.sessions.ClearCookie(w)
	clearTokenCookies(w, h.config.Cookies)

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
	})
}

// writeUpstreamError はIDサービスのエラーをクライアントに返す。
// IDサービスのステータスとmessageを反映し、応答がない場合は500と既定メッセージを返す。
func writeUpstreamError(w http.ResponseWriter, err error, fallback string) {
	if upErr, ok := identity.AsUpstreamError(err); ok {
		middleware.WriteErrorMessage(w, upErr.HTTPStatus(), upErr.MessageOr(fallback))
		return
	}

	slog.Error("identity call failed", slog.String("error", err.Error()))
	middleware.WriteErrorMessage(w, http.StatusInternalServerError, fallback)
}
