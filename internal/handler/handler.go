// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/todoclient/internal/middleware"
	"github.com/hitoshi/todoclient/internal/model"
)

// maxRequestBodySize はJSONリクエストボディとして受け付ける最大バイト数。
const maxRequestBodySize = 1 << 20

// トークンCookieの有効期間。
const (
	accessTokenMaxAge  = time.Hour
	refreshTokenMaxAge = 30 * 24 * time.Hour
)

// SessionSaver はハンドラーが変更したセッションを保存するためのインターフェース。
// SaveでセッションのExpiresAtが延長されるため、変更したハンドラーはSetCookieでCookieも再発行する。
type SessionSaver interface {
	Save(ctx context.Context, sess *model.Session) error
	SetCookie(w http.ResponseWriter, sess *model.Session)
}

// CookieConfig はハンドラーが発行するCookieの設定。
type CookieConfig struct {
	Secure bool
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeTodoNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 空のボディは空オブジェクトとして扱い、解析できない場合はINVALID_REQUESTのAPIErrorを返す。
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", model.NewInvalidRequestError(), err)
	}
	return nil
}

// setTokenCookies はアクセストークンとリフレッシュトークンのCookieを設定する。
func setTokenCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string) {
	http.SetCookie(w, tokenCookie(cfg, middleware.AccessTokenCookie, accessToken, accessTokenMaxAge))
	http.SetCookie(w, tokenCookie(cfg, middleware.RefreshTokenCookie, refreshToken, refreshTokenMaxAge))
}

// clearTokenCookies はトークンCookieを削除する。
func clearTokenCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := tokenCookie(cfg, name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func tokenCookie(cfg CookieConfig, name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
