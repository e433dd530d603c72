// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoclient/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
	sessionContextKey = contextKey("session")
	// userIDContextKey はリクエストコンテキストに操作ユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// introspectionContextKey はリクエストコンテキストにイントロスペクション結果を格納するためのキー。
	introspectionContextKey = contextKey("introspection")
)

// ErrNoSession はコンテキストにセッションがない場合のエラー。
var ErrNoSession = errors.New("session not found in context")

// SessionLoader はセッションの読み込みと保存に必要なインターフェース。
// session.Managerの部分集合として定義する。
type SessionLoader interface {
	Load(r *http.Request) (*model.Session, bool, error)
	Save(ctx context.Context, sess *model.Session) error
	SetCookie(w http.ResponseWriter, sess *model.Session)
}

// NewSessionMiddleware はセッションCookieからセッションを読み込み、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、または無効な場合は新しいセッションを作成して保存し、Cookieを発行する。
// ハンドラーがセッションを変更した場合は自分で保存すること。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, isNew, err := loader.Load(r)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if isNew {
				if err := loader.Save(r.Context(), sess); err != nil {
					slog.Error("failed to save new session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				loader.SetCookie(w, sess)
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}
