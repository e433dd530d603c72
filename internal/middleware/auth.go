package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoclient/internal/identity"
	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/model"
)

// トークンを保持するCookie名。
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// LoginPath は未認証リクエストのリダイレクト先。
const LoginPath = "/login"

// TokenIntrospector はアクセストークンの検証に必要なインターフェース。
type TokenIntrospector interface {
	Introspect(ctx context.Context, token string) (*identity.Introspection, error)
}

// NewAuthMiddleware はアクセストークンをIDサービスでイントロスペクションし、
// 有効な場合のみ後続のハンドラーを呼び出すミドルウェアを返す。
//
// トークンはセッション、次にaccessToken Cookieの順で探す。
// トークンがない、無効、または検証に失敗した場合は/loginへ302リダイレクトする。
// 結果はキャッシュせず、リクエストごとに検証する。
// セッションミドルウェアの内側で使用すること。
func NewAuthMiddleware(introspector TokenIntrospector, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := SessionFromContext(r.Context())

			token := accessTokenFrom(r, sess)
			if token == "" {
				collector.RecordAuthDecision(metrics.AuthMissingToken)
				redirectToLogin(w, r)
				return
			}

			result, err := introspector.Introspect(r.Context(), token)
			if err != nil {
				slog.Warn("token introspection failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				collector.RecordAuthDecision(metrics.AuthIntrospectFail)
				redirectToLogin(w, r)
				return
			}
			if !result.Active {
				collector.RecordAuthDecision(metrics.AuthInactiveToken)
				redirectToLogin(w, r)
				return
			}

			userID := actingUserID(sess, result)
			if userID.IsZero() {
				slog.Warn("active token has no subject",
					slog.String("path", r.URL.Path),
				)
				collector.RecordAuthDecision(metrics.AuthNoSubject)
				redirectToLogin(w, r)
				return
			}

			collector.RecordAuthDecision(metrics.AuthAllowed)

			ctx := ContextWithIntrospection(r.Context(), result)
			ctx = ContextWithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// accessTokenFrom はセッション、Cookieの順にアクセストークンを取り出す。
func accessTokenFrom(r *http.Request, sess *model.Session) string {
	if sess != nil && sess.AccessToken != "" {
		return sess.AccessToken
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// actingUserID はToDo操作に使うユーザーIDを決める。
// セッションのユーザーを優先し、なければイントロスペクションのsubを使う。
func actingUserID(sess *model.Session, result *identity.Introspection) model.UserID {
	if sess != nil && sess.User != nil && !sess.User.ID.IsZero() {
		return sess.User.ID
	}
	return result.Sub
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// UserIDFromContext はリクエストコンテキストから操作ユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (model.UserID, error) {
	userID, ok := ctx.Value(userIDContextKey).(model.UserID)
	if !ok || userID.IsZero() {
		return model.UserID{}, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの内側であれば、アクセスログにもユーザーIDが記録される。
func ContextWithUserID(ctx context.Context, userID model.UserID) context.Context {
	if fields, ok := ctx.Value(logFieldsContextKey).(*logFields); ok {
		fields.setUserID(userID.String())
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// IntrospectionFromContext はリクエストコンテキストからイントロスペクション結果を取得する。
func IntrospectionFromContext(ctx context.Context) (*identity.Introspection, bool) {
	result, ok := ctx.Value(introspectionContextKey).(*identity.Introspection)
	return result, ok && result != nil
}

// ContextWithIntrospection はコンテキストにイントロスペクション結果を注入する。
func ContextWithIntrospection(ctx context.Context, result *identity.Introspection) context.Context {
	return context.WithValue(ctx, introspectionContextKey, result)
}
