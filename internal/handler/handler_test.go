package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoclient/internal/auth"
	"github.com/hitoshi/todoclient/internal/identity"
	"github.com/hitoshi/todoclient/internal/middleware"
	"github.com/hitoshi/todoclient/internal/model"
)

// --- モック定義 ---

// mockSessions はSessionManagerのモック実装。
type mockSessions struct {
	saveFn       func(ctx context.Context, sess *model.Session) error
	saved        []*model.Session
	destroyed    []string
	cookieSets   []string
	cookieClears int
}

func (m *mockSessions) Load(r *http.Request) (*model.Session, bool, error) {
	return &model.Session{ID: "mock-session"}, true, nil
}

func (m *mockSessions) Save(ctx context.Context, sess *model.Session) error {
	m.saved = append(m.saved, sess.Clone())
	if m.saveFn != nil {
		return m.saveFn(ctx, sess)
	}
	return nil
}

func (m *mockSessions) SetCookie(w http.ResponseWriter, sess *model.Session) {
	m.cookieSets = append(m.cookieSets, sess.ID)
}

func (m *mockSessions) Destroy(ctx context.Context, id string) error {
	m.destroyed = append(m.destroyed, id)
	return nil
}

func (m *mockSessions) ClearCookie(w http.ResponseWriter) {
	m.cookieClears++
}

var _ SessionManager = (*mockSessions)(nil)

// mockIdentityService はIdentityServiceのモック実装。
type mockIdentityService struct {
	loginFn    func(ctx context.Context, email, password string) (*identity.LoginResult, error)
	registerFn func(ctx context.Context, fields json.RawMessage) (*identity.RegisterResult, error)
	logoutFn   func(ctx context.Context, accessToken string) error
	logoutCall int
}

func (m *mockIdentityService) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIdentityService) Register(ctx context.Context, fields json.RawMessage) (*identity.RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, fields)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIdentityService) Logout(ctx context.Context, accessToken string) error {
	m.logoutCall++
	if m.logoutFn != nil {
		return m.logoutFn(ctx, accessToken)
	}
	return nil
}

// mockOAuthFlow はOAuthFlowのモック実装。
type mockOAuthFlow struct {
	beginFn    func(sess *model.Session) (string, error)
	completeFn func(ctx context.Context, sess *model.Session, cb auth.Callback) auth.Result
}

func (m *mockOAuthFlow) Begin(sess *model.Session) (string, error) {
	if m.beginFn != nil {
		return m.beginFn(sess)
	}
	return "", errors.New("not implemented")
}

func (m *mockOAuthFlow) Complete(ctx context.Context, sess *model.Session, cb auth.Callback) auth.Result {
	if m.completeFn != nil {
		return m.completeFn(ctx, sess, cb)
	}
	return auth.Result{State: auth.StateFailed, Reason: auth.ReasonExchangeFailed}
}

// mockTodoStore はTodoStoreのモック実装。
type mockTodoStore struct {
	listFn   func(ctx context.Context, userID model.UserID) ([]model.Todo, error)
	createFn func(ctx context.Context, userID model.UserID, title, description string) (*model.Todo, error)
	updateFn func(ctx context.Context, userID model.UserID, id int64, patch model.TodoPatch) (*model.Todo, error)
	deleteFn func(ctx context.Context, userID model.UserID, id int64) error
	calls    int
}

func (m *mockTodoStore) List(ctx context.Context, userID model.UserID) ([]model.Todo, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []model.Todo{}, nil
}

func (m *mockTodoStore) Create(ctx context.Context, userID model.UserID, title, description string) (*model.Todo, error) {
	m.calls++
	if m.createFn != nil {
		return m.createFn(ctx, userID, title, description)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTodoStore) Update(ctx context.Context, userID model.UserID, id int64, patch model.TodoPatch) (*model.Todo, error) {
	m.calls++
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, patch)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTodoStore) Delete(ctx context.Context, userID model.UserID, id int64) error {
	m.calls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return errors.New("not implemented")
}

// --- テストヘルパー ---

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, sess *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), sess))
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID model.UserID) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// decodeBody はレスポンスボディをmapとしてデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return result
}

// findCookie はレスポンスから指定名のCookieを探すヘルパー。
func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestHandleServiceError_MapsCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", model.NewTitleRequiredError(), http.StatusBadRequest, "Title is required"},
		{"not found", model.NewTodoNotFoundError(), http.StatusNotFound, "Todo not found"},
		{"invalid request", model.NewInvalidRequestError(), http.StatusBadRequest, "Invalid request body"},
		{"wrapped", errors.Join(errors.New("ctx"), model.NewTodoNotFoundError()), http.StatusNotFound, "Todo not found"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handleServiceError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeBody(t, w)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if body["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestHealth_ReturnsOK(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}
