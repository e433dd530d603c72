// Package todo はユーザーごとのToDoリストを管理する。
package todo

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/todoclient/internal/model"
)

// Store はToDoの永続化インターフェース。
// 全操作はuserIDを受け取り、所有者が一致するToDoのみを対象にする。
type Store interface {
	// List はユーザーのToDoを作成順に返す。
	List(ctx context.Context, userID model.UserID) ([]model.Todo, error)
	// Create はToDoを作成する。空タイトルの場合はVALIDATION_ERRORを返す。
	Create(ctx context.Context, userID model.UserID, title, description string) (*model.Todo, error)
	// Update は指定されたフィールドのみを更新する。
	// 所有するToDoが存在しない場合はTODO_NOT_FOUNDを返す。
	Update(ctx context.Context, userID model.UserID, id int64, patch model.TodoPatch) (*model.Todo, error)
	// Delete はToDoを削除する。所有するToDoが存在しない場合はTODO_NOT_FOUNDを返す。
	Delete(ctx context.Context, userID model.UserID, id int64) error
}

// MemoryStore はプロセス内メモリにToDoを保持するStore実装。
// 挿入順を保持し、IDはプロセス内で単調増加する。
type MemoryStore struct {
	mu     sync.Mutex
	todos  []model.Todo
	nextID int64
	now    func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List はユーザーのToDoを作成順に返す。該当なしの場合は空スライスを返す。
func (s *MemoryStore) List(ctx context.Context, userID model.UserID) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]model.Todo, 0)
	for _, t := range s.todos {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

// Create はタイトルと説明をトリムしてToDoを作成する。
func (s *MemoryStore) Create(ctx context.Context, userID model.UserID, title, description string) (*model.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewTitleRequiredError()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := model.Todo{
		ID:          s.nextID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Completed:   false,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.todos = append(s.todos, t)

	return &t, nil
}

// Update は指定されたフィールドのみを反映し、updatedAtを更新する。
// 更新時のタイトルは空でも受け付ける（作成時のみ検証する）。
func (s *MemoryStore) Update(ctx context.Context, userID model.UserID, id int64, patch model.TodoPatch) (*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(userID, id)
	if i < 0 {
		return nil, model.NewTodoNotFoundError()
	}

	t := &s.todos[i]
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}

	// 時計が巻き戻ってもupdatedAtは減少させない
	if now := s.now(); now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}

	updated := *t
	return &updated, nil
}

// Delete は所有者が一致するToDoを削除する。
func (s *MemoryStore) Delete(ctx context.Context, userID model.UserID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(userID, id)
	if i < 0 {
		return model.NewTodoNotFoundError()
	}

	s.todos = slices.Delete(s.todos, i, i+1)
	return nil
}

// indexOf はIDと所有者が一致するToDoの位置を返す。見つからない場合は-1。
// 呼び出し側でmuを保持していること。
func (s *MemoryStore) indexOf(userID model.UserID, id int64) int {
	return slices.IndexFunc(s.todos, func(t model.Todo) bool {
		return t.ID == id && t.UserID == userID
	})
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
