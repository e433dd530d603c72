// Package session はCookieで参照するサーバーサイドセッションを管理する。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/todoclient/internal/model"
)

// Store はセッションの保存先インターフェース。
type Store interface {
	// Get は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	Get(ctx context.Context, id string) (*model.Session, error)
	// Save はセッションを作成または上書きする。
	Save(ctx context.Context, session *model.Session) error
	// Destroy は指定IDのセッションを削除する。存在しない場合も成功とする。
	Destroy(ctx context.Context, id string) error
}

// MemoryStore はプロセス内メモリにセッションを保持するStore実装。
// 保存・取得ともにコピーを扱い、呼び出し側の変更はSaveするまで反映されない。
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	now      func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// Get は指定IDのセッションを取得する。期限切れのセッションはその場で削除する。
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, nil
	}
	return sess.Clone(), nil
}

// Save はセッションを保存する。
func (s *MemoryStore) Save(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session.Clone()
	return nil
}

// Destroy は指定IDのセッションを削除する。
func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len は保持しているセッション数を返す。テスト用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// DeleteExpired は期限切れセッションをまとめて削除し、削除件数を返す。
// 定期的なクリーンアップジョブから呼ばれる。
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.IsZero() && !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
