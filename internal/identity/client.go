// Package identity は外部IDサービス（OAuth対応の認証サーバー）へのHTTPクライアントを提供する。
// 各操作は1回のHTTP呼び出しで完結し、リトライやバックオフは行わない。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/model"
	"golang.org/x/oauth2"
)

// maxResponseSize はIDサービスのレスポンスボディとして読み取る最大バイト数。
const maxResponseSize = 1 << 20

// 操作名。ログとメトリクスのラベルに使う。
const (
	OpLogin      = "login"
	OpRegister   = "register"
	OpExchange   = "exchange_code"
	OpIntrospect = "introspect"
	OpLogout     = "logout"
)

// Config はIDサービスクライアントの設定。
type Config struct {
	BaseURL      string // 例: http://localhost:3000
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CookieDomain string // トークン交換時にIDサービスへ伝えるCookieドメイン
	Scopes       []string
}

// LoginResult は直接ログインのレスポンス。
type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user"`
}

// RegisterResult はユーザー登録のレスポンス。
type RegisterResult struct {
	Message string `json:"message"`
}

// TokenResult は認可コード交換のレスポンス。
type TokenResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

// exchangeRequest はトークン交換リクエストのボディ。
type exchangeRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	SetCookies   bool   `json:"setCookies"`
	CookieDomain string `json:"cookieDomain,omitempty"`
}

// Client は外部IDサービスのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	config     Config
	oauth      *oauth2.Config
}

// NewClient はClientを生成する。
// httpClientにはタイムアウトを設定したものを渡すこと。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, config Config) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "email", "profile"}
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		config:     config,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.BaseURL + "/authorize",
				TokenURL: config.BaseURL + "/auth/token",
			},
		},
	}
}

// AuthorizeURL はIDサービスの認可エンドポイントURLを生成する。
// client_id、redirect_uri、response_type=code、scope、stateを含む。
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Login はメールアドレスとパスワードでIDサービスにログインする。
// POST /login
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var result LoginResult
	if err := c.postJSON(ctx, OpLogin, "/login", body, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register はリクエストボディをそのままIDサービスに転送してユーザー登録する。
// POST /register
func (c *Client) Register(ctx context.Context, fields json.RawMessage) (*RegisterResult, error) {
	var result RegisterResult
	if err := c.postJSON(ctx, OpRegister, "/register", fields, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeCode は認可コードをアクセストークン・リフレッシュトークン・ユーザー情報に交換する。
// POST /auth/token
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResult, error) {
	body := exchangeRequest{
		GrantType:    "authorization_code",
		Code:         code,
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURI:  c.config.RedirectURL,
		SetCookies:   true,
		CookieDomain: c.config.CookieDomain,
	}

	var result TokenResult
	if err := c.postJSON(ctx, OpExchange, "/auth/token", body, nil, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, &UpstreamError{Op: OpExchange, Message: "empty access token in response"}
	}
	return &result, nil
}

// Introspect はRFC 7662形式でトークンの有効性をIDサービスに問い合わせる。
// クライアント資格情報でBasic認証する。
// POST /introspect
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/introspect", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)

	raw, err := c.do(OpIntrospect, req)
	if err != nil {
		return nil, err
	}

	result, err := parseIntrospection(raw)
	if err != nil {
		return nil, &UpstreamError{Op: OpIntrospect, StatusCode: http.StatusOK, Message: "invalid introspection response", Err: err}
	}
	return result, nil
}

// Logout はアクセストークンを添えてIDサービスにログアウトを通知する。
// 呼び出し元は失敗してもローカルセッションを破棄すること。
// POST /logout
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+accessToken)
	return c.postJSON(ctx, OpLogout, "/logout", struct{}{}, headers, nil)
}

// postJSON はJSONボディでPOSTし、2xxレスポンスをoutにデコードする。outがnilの場合はボディを捨てる。
func (c *Client) postJSON(ctx context.Context, op, path string, body any, headers http.Header, out any) error {
	var payload []byte
	switch b := body.(type) {
	case json.RawMessage:
		payload = b
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		payload = encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	raw, err := c.do(op, req)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &UpstreamError{Op: op, StatusCode: http.StatusOK, Message: "invalid response body", Err: err}
	}
	return nil
}

// do はリクエストを実行し、2xxの場合はレスポンスボディを返す。
// 通信エラーと2xx以外はUpstreamErrorとして返す。
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, 0, start)
		c.logger.Error("IDサービスの呼び出しに失敗しました",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.record(op, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("IDサービスがエラーステータスを返しました",
			slog.String("operation", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body),
		}
	}

	return body, nil
}

func (c *Client) record(op string, statusCode int, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordIdentityCall(op, statusCode, time.Since(start))
	}
}

// extractMessage はエラーレスポンスのJSONからmessageフィールドを取り出す。取れない場合は空文字。
func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
