package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/middleware"
	"github.com/hitoshi/todoclient/internal/model"
)

// TodoStore はToDoハンドラーが必要とするストアのインターフェース。
type TodoStore interface {
	List(ctx context.Context, userID model.UserID) ([]model.Todo, error)
	Create(ctx context.Context, userID model.UserID, title, description string) (*model.Todo, error)
	Update(ctx context.Context, userID model.UserID, id int64, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, userID model.UserID, id int64) error
}

// TodoHandler はToDo APIのHTTPハンドラー。
// 全操作は認証ミドルウェアが決めた操作ユーザーのToDoだけを対象にする。
type TodoHandler struct {
	store   TodoStore
	metrics metrics.MetricsCollector
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(store TodoStore, collector metrics.MetricsCollector) *TodoHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &TodoHandler{
		store:   store,
		metrics: collector,
	}
}

// createTodoRequest はToDo作成リクエストのボディ。
type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// List はユーザーのToDo一覧を作成順に返す。
// GET /api/todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	todos, err := h.store.List(r.Context(), userID)
	h.metrics.RecordTodoOperation("list", err == nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"todos": todos,
	})
}

// Create はToDoを作成する。
// POST /api/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	todo, err := h.store.Create(r.Context(), userID, req.Title, req.Description)
	h.metrics.RecordTodoOperation("create", err == nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Debug("todo created",
		slog.String("user_id", userID.String()),
		slog.Int64("todo_id", todo.ID),
	)

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"todo":    todo,
	})
}

// Update はToDoを部分更新する。指定されたフィールドのみ変更する。
// PUT /api/todos/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id, ok := parseTodoID(w, r)
	if !ok {
		h.metrics.RecordTodoOperation("update", false)
		return
	}

	var patch model.TodoPatch
	if err := decodeJSON(r, &patch); err != nil {
		handleServiceError(w, err)
		return
	}

	todo, err := h.store.Update(r.Context(), userID, id, patch)
	h.metrics.RecordTodoOperation("update", err == nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"todo":    todo,
	})
}

// Delete はToDoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id, ok := parseTodoID(w, r)
	if !ok {
		h.metrics.RecordTodoOperation("delete", false)
		return
	}

	err := h.store.Delete(r.Context(), userID, id)
	h.metrics.RecordTodoOperation("delete", err == nil)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Todo deleted successfully",
	})
}

// userID はコンテキストから操作ユーザーIDを取り出す。
// 取り出せない場合はエラーレスポンスを書き込んでfalseを返す。
func (h *TodoHandler) userID(w http.ResponseWriter, r *http.Request) (model.UserID, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return model.UserID{}, false
	}
	return userID, true
}

// parseTodoID はURLパラメータのIDを解析する。
// 数値でないIDは存在しないToDoとして404を返す。
func parseTodoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTodoNotFoundError())
		return 0, false
	}
	return id, true
}
