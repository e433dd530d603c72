package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError はIDサービス呼び出しの失敗を表す。
// StatusCodeが0の場合はレスポンスを受け取れなかった（通信エラー・タイムアウト）ことを示す。
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string // IDサービスが返したmessage（あれば）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("identity %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("identity %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Message != "":
		return fmt.Sprintf("identity %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("identity %s: status %d", e.Op, e.StatusCode)
	}
}

// Unwrap は元のエラーを返す。
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus はクライアントへ返すべきHTTPステータスを返す。
// IDサービスのステータスを反映し、受け取れなかった場合は500とする。
func (e *UpstreamError) HTTPStatus() int {
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// MessageOr はIDサービスのmessageを返す。空の場合はfallbackを返す。
func (e *UpstreamError) MessageOr(fallback string) string {
	if e.Message != "" {
		return e.Message
	}
	return fallback
}

// AsUpstreamError はerrからUpstreamErrorを取り出す。
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
