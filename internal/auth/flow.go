// Package auth はIDサービスに対するOAuth認可コードフローを提供する。
//
// フローはセッションごとに次の状態を遷移する。
//
//	idle → awaiting_callback → exchanging → authenticated
//	                                      ↘ failed(reason)
//
// 自動リトライは行わず、失敗した場合はidleから開始し直す。
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/todoclient/internal/identity"
	"github.com/hitoshi/todoclient/internal/model"
)

// State はOAuthフローの状態を表す。
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingCallback State = "awaiting_callback"
	StateExchanging       State = "exchanging"
	StateAuthenticated    State = "authenticated"
	StateFailed           State = "failed"
)

// FailureReason はfailed状態の理由を表す。
type FailureReason string

const (
	ReasonProviderError  FailureReason = "provider_error"
	ReasonInvalidState   FailureReason = "invalid_state"
	ReasonExchangeFailed FailureReason = "exchange_failed"
)

// stateLength は生成するstateの文字数。
const stateLength = 16

const stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Gateway はフローが必要とするIDサービスの操作。
type Gateway interface {
	// AuthorizeURL は認可エンドポイントのURLを生成する。
	AuthorizeURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*identity.TokenResult, error)
}

// Callback は認可サーバーからコールバックで受け取ったパラメータ。
type Callback struct {
	Code  string
	State string
	Error string
}

// Result はコールバック処理の結果。
type Result struct {
	State         State
	Reason        FailureReason // StateFailedの場合のみ設定
	ProviderError string        // ReasonProviderErrorの場合の認可サーバーのerror値
	Tokens        *identity.TokenResult
}

// LoginErrorCode はログイン画面に渡すエラーコードを返す。
// 認可サーバーのエラーはその値をそのまま使う。
func (r Result) LoginErrorCode() string {
	switch r.Reason {
	case ReasonProviderError:
		return r.ProviderError
	case ReasonInvalidState:
		return "invalid_state"
	case ReasonExchangeFailed:
		return "token_exchange_failed"
	default:
		return ""
	}
}

// Flow はOAuth認可コードフローのコントローラー。
type Flow struct {
	gateway Gateway
	logger  *slog.Logger
	random  io.Reader
}

// NewFlow はFlowを生成する。
func NewFlow(gateway Gateway, logger *slog.Logger) *Flow {
	return &Flow{
		gateway: gateway,
		logger:  logger,
		random:  rand.Reader,
	}
}

// StateOf はセッションの内容から現在のフロー状態を判定する。
func StateOf(sess *model.Session) State {
	switch {
	case sess == nil:
		return StateIdle
	case sess.AccessToken != "":
		return StateAuthenticated
	case sess.OAuthState != "":
		return StateAwaitingCallback
	default:
		return StateIdle
	}
}

// Begin はidle → awaiting_callbackに遷移する。
// 新しいstateをセッションに保存し、リダイレクト先の認可URLを返す。
// 呼び出し側はセッションを保存すること。
func (f *Flow) Begin(sess *model.Session) (string, error) {
	state, err := f.generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	sess.OAuthState = state
	return f.gateway.AuthorizeURL(state), nil
}

// Complete はコールバックを処理してauthenticatedまたはfailedに遷移する。
// セッションに保存されたstateは結果に関わらず消費される。
// 成功時はトークンとユーザー情報をセッションに格納する。呼び出し側はセッションを保存すること。
func (f *Flow) Complete(ctx context.Context, sess *model.Session, cb Callback) Result {
	expected := sess.OAuthState
	sess.OAuthState = ""

	if cb.Error != "" {
		f.logger.Warn("oauth provider returned error",
			slog.String("error", cb.Error),
		)
		return Result{State: StateFailed, Reason: ReasonProviderError, ProviderError: cb.Error}
	}

	if expected == "" || cb.State != expected {
		f.logger.Warn("oauth state mismatch",
			slog.Bool("stored_state_present", expected != ""),
		)
		return Result{State: StateFailed, Reason: ReasonInvalidState}
	}

	// exchanging
	tokens, err := f.gateway.ExchangeCode(ctx, cb.Code)
	if err != nil {
		f.logger.Warn("token exchange failed", slog.String("error", err.Error()))
		return Result{State: StateFailed, Reason: ReasonExchangeFailed}
	}

	sess.AccessToken = tokens.AccessToken
	sess.RefreshToken = tokens.RefreshToken
	sess.User = tokens.User

	return Result{State: StateAuthenticated, Tokens: tokens}
}

// generateState は英数字のみのランダムなstateを生成する。
// 偏りを避けるため、アルファベット数の倍数を超えるバイトは捨てる。
func (f *Flow) generateState() (string, error) {
	const limit = 256 - 256%len(stateAlphabet)

	out := make([]byte, 0, stateLength)
	buf := make([]byte, stateLength*2)
	for len(out) < stateLength {
		if _, err := io.ReadFull(f.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == stateLength {
				break
			}
		}
	}
	return string(out), nil
}
