package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoclient/internal/model"
)

// CookieName はセッションIDを運ぶCookieの名前。
const CookieName = "sid"

// DefaultMaxAge はセッションCookieとセッションレコードの有効期間。
const DefaultMaxAge = 24 * time.Hour

// ManagerConfig はManagerの設定。
type ManagerConfig struct {
	Secret       string // Cookie署名用の鍵（SESSION_SECRET）
	MaxAge       time.Duration
	CookieSecure bool
}

// Manager はセッションストアとセッションCookieを結び付ける。
// Cookieの値は "<セッションID>.<HMAC-SHA256署名>" の形式で、改ざんされたCookieは無視する。
type Manager struct {
	store  Store
	config ManagerConfig
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(store Store, config ManagerConfig) *Manager {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	return &Manager{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Load はリクエストのCookieからセッションを読み込む。
// Cookieがない、署名が不正、またはストアに存在しない場合は新しいセッションを生成して返す。
// 戻り値のboolは新規セッションかどうかを示す。
func (m *Manager) Load(r *http.Request) (*model.Session, bool, error) {
	if id, ok := m.idFromRequest(r); ok {
		sess, err := m.store.Get(r.Context(), id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load session: %w", err)
		}
		if sess != nil {
			return sess, false, nil
		}
	}

	now := m.now()
	return &model.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.MaxAge),
	}, true, nil
}

// Save はセッションをストアに保存する。
// 保存のたびにExpiresAtを現在時刻+MaxAgeに延長する。
func (m *Manager) Save(ctx context.Context, sess *model.Session) error {
	sess.ExpiresAt = m.now().Add(m.config.MaxAge)
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy はセッションをストアから削除する。
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.store.Destroy(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// SetCookie はセッションCookieをレスポンスに設定する。
func (m *Manager) SetCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(sess.ID),
		Path:     "/",
		MaxAge:   int(m.config.MaxAge / time.Second),
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie はセッションCookieを削除する。
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// idFromRequest は署名を検証してCookieからセッションIDを取り出す。
func (m *Manager) idFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	id, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok || id == "" {
		return "", false
	}

	expected := m.signature(id)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return id, true
}

func (m *Manager) sign(id string) string {
	return id + "." + m.signature(id)
}

func (m *Manager) signature(id string) string {
	mac := hmac.New(sha256.New, []byte(m.config.Secret))
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
