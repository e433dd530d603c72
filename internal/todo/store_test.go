package todo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/todoclient/internal/model"
)

// fakeClock はテスト用に進めることのできる時計。
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.now
	return s, clock
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestMemoryStore_Create_BuyMilkExample(t *testing.T) {
	s, clock := newTestStore()
	user := model.NumericUserID(1)

	todo, err := s.Create(context.Background(), user, "Buy milk", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if todo.ID != 1 {
		t.Errorf("ID = %d, want 1", todo.ID)
	}
	if todo.Title != "Buy milk" {
		t.Errorf("Title = %q, want %q", todo.Title, "Buy milk")
	}
	if todo.Description != "" {
		t.Errorf("Description = %q, want empty", todo.Description)
	}
	if todo.Completed {
		t.Error("Completed should be false")
	}
	if todo.UserID != user {
		t.Errorf("UserID = %v, want %v", todo.UserID, user)
	}
	if !todo.CreatedAt.Equal(clock.t) || !todo.UpdatedAt.Equal(todo.CreatedAt) {
		t.Errorf("CreatedAt = %v, UpdatedAt = %v, want both %v", todo.CreatedAt, todo.UpdatedAt, clock.t)
	}

	clock.advance(time.Second)
	updated, err := s.Update(context.Background(), user, 1, model.TodoPatch{Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !updated.Completed {
		t.Error("Completed should be true after update")
	}
	if !updated.UpdatedAt.After(todo.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, should be after %v", updated.UpdatedAt, todo.UpdatedAt)
	}
	if updated.Title != "Buy milk" {
		t.Errorf("Title = %q, should be unchanged", updated.Title)
	}
}

func TestMemoryStore_Create_TrimsFields(t *testing.T) {
	s, _ := newTestStore()

	todo, err := s.Create(context.Background(), model.NewUserID("u1"), "  title  ", "\tdesc \n")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if todo.Title != "title" {
		t.Errorf("Title = %q, want %q", todo.Title, "title")
	}
	if todo.Description != "desc" {
		t.Errorf("Description = %q, want %q", todo.Description, "desc")
	}
}

func TestMemoryStore_Create_RejectsBlankTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
	}{
		{name: "empty", title: ""},
		{name: "spaces", title: "   "},
		{name: "whitespace mix", title: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore()
			_, err := s.Create(context.Background(), model.NumericUserID(1), tt.title, "desc")
			if !model.HasCode(err, model.ErrCodeValidation) {
				t.Fatalf("error = %v, want %s", err, model.ErrCodeValidation)
			}

			list, _ := s.List(context.Background(), model.NumericUserID(1))
			if len(list) != 0 {
				t.Errorf("len(list) = %d, want 0", len(list))
			}
		})
	}
}

func TestMemoryStore_IDsAreGloballyMonotonic(t *testing.T) {
	s, _ := newTestStore()
	a := model.NumericUserID(1)
	b := model.NumericUserID(2)

	t1, _ := s.Create(context.Background(), a, "one", "")
	t2, _ := s.Create(context.Background(), b, "two", "")
	if err := s.Delete(context.Background(), b, t2.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	t3, _ := s.Create(context.Background(), a, "three", "")

	if t1.ID != 1 || t2.ID != 2 || t3.ID != 3 {
		t.Errorf("ids = %d, %d, %d, want 1, 2, 3", t1.ID, t2.ID, t3.ID)
	}
}

func TestMemoryStore_List_PreservesInsertionOrderPerUser(t *testing.T) {
	s, _ := newTestStore()
	a := model.NumericUserID(1)
	b := model.NumericUserID(2)

	s.Create(context.Background(), a, "a1", "")
	s.Create(context.Background(), b, "b1", "")
	s.Create(context.Background(), a, "a2", "")
	s.Create(context.Background(), a, "a3", "")

	list, err := s.List(context.Background(), a)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"a1", "a2", "a3"}
	if len(list) != len(want) {
		t.Fatalf("len(list) = %d, want %d", len(list), len(want))
	}
	for i, title := range want {
		if list[i].Title != title {
			t.Errorf("list[%d].Title = %q, want %q", i, list[i].Title, title)
		}
	}
}

func TestMemoryStore_List_EmptyIsNonNil(t *testing.T) {
	s, _ := newTestStore()

	list, err := s.List(context.Background(), model.NumericUserID(99))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if list == nil {
		t.Error("list should be an empty slice, not nil")
	}
}

func TestMemoryStore_OwnershipIsolation(t *testing.T) {
	s, _ := newTestStore()
	a := model.NumericUserID(1)
	b := model.NumericUserID(2)

	todo, err := s.Create(context.Background(), a, "secret", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, _ := s.List(context.Background(), b)
	if len(list) != 0 {
		t.Errorf("B should see no todos, got %d", len(list))
	}

	_, err = s.Update(context.Background(), b, todo.ID, model.TodoPatch{Title: strPtr("hijacked")})
	if !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("update by B: error = %v, want %s", err, model.ErrCodeTodoNotFound)
	}

	err = s.Delete(context.Background(), b, todo.ID)
	if !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("delete by B: error = %v, want %s", err, model.ErrCodeTodoNotFound)
	}

	list, _ = s.List(context.Background(), a)
	if len(list) != 1 || list[0].Title != "secret" {
		t.Errorf("A's todo should be untouched, got %+v", list)
	}
}

func TestMemoryStore_OwnershipComparesIDForm(t *testing.T) {
	s, _ := newTestStore()

	todo, _ := s.Create(context.Background(), model.NumericUserID(1), "numeric owner", "")

	// 文字列の"1"は数値の1とは別ユーザーとして扱う
	err := s.Delete(context.Background(), model.NewUserID("1"), todo.ID)
	if !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("error = %v, want %s", err, model.ErrCodeTodoNotFound)
	}
}

func TestMemoryStore_Update_PartialFields(t *testing.T) {
	s, _ := newTestStore()
	user := model.NumericUserID(1)
	todo, _ := s.Create(context.Background(), user, "title", "desc")

	updated, err := s.Update(context.Background(), user, todo.ID, model.TodoPatch{Description: strPtr("  new desc ")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Title != "title" {
		t.Errorf("Title = %q, want unchanged %q", updated.Title, "title")
	}
	if updated.Description != "new desc" {
		t.Errorf("Description = %q, want %q", updated.Description, "new desc")
	}
	if updated.Completed {
		t.Error("Completed should stay false")
	}
}

func TestMemoryStore_Update_AcceptsEmptyTitle(t *testing.T) {
	s, _ := newTestStore()
	user := model.NumericUserID(1)
	todo, _ := s.Create(context.Background(), user, "title", "")

	updated, err := s.Update(context.Background(), user, todo.ID, model.TodoPatch{Title: strPtr("   ")})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Title != "" {
		t.Errorf("Title = %q, want empty", updated.Title)
	}
}

func TestMemoryStore_Update_UpdatedAtNeverDecreases(t *testing.T) {
	s, clock := newTestStore()
	user := model.NumericUserID(1)
	todo, _ := s.Create(context.Background(), user, "title", "")

	clock.advance(-time.Hour)
	updated, err := s.Update(context.Background(), user, todo.ID, model.TodoPatch{Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.UpdatedAt.Before(todo.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, must not be before %v", updated.UpdatedAt, todo.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(todo.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", todo.CreatedAt, updated.CreatedAt)
	}
}

func TestMemoryStore_Update_UnknownID(t *testing.T) {
	s, _ := newTestStore()

	_, err := s.Update(context.Background(), model.NumericUserID(1), 42, model.TodoPatch{})
	if !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("error = %v, want %s", err, model.ErrCodeTodoNotFound)
	}
}

func TestMemoryStore_Delete_RemovesOnlyTarget(t *testing.T) {
	s, _ := newTestStore()
	user := model.NumericUserID(1)
	s.Create(context.Background(), user, "keep-1", "")
	target, _ := s.Create(context.Background(), user, "remove", "")
	s.Create(context.Background(), user, "keep-2", "")

	if err := s.Delete(context.Background(), user, target.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	list, _ := s.List(context.Background(), user)
	if len(list) != 2 || list[0].Title != "keep-1" || list[1].Title != "keep-2" {
		t.Errorf("unexpected list after delete: %+v", list)
	}

	if err := s.Delete(context.Background(), user, target.ID); !model.HasCode(err, model.ErrCodeTodoNotFound) {
		t.Errorf("second delete: error = %v, want %s", err, model.ErrCodeTodoNotFound)
	}
}

func TestMemoryStore_ReturnedRecordsAreCopies(t *testing.T) {
	s, _ := newTestStore()
	user := model.NumericUserID(1)
	todo, _ := s.Create(context.Background(), user, "original", "")

	todo.Title = "mutated"

	list, _ := s.List(context.Background(), user)
	if list[0].Title != "original" {
		t.Errorf("store was mutated through returned pointer: %q", list[0].Title)
	}
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	s := NewMemoryStore()
	user := model.NumericUserID(1)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Create(context.Background(), user, "task", "")
		}()
	}
	wg.Wait()

	list, _ := s.List(context.Background(), user)
	if len(list) != n {
		t.Fatalf("len(list) = %d, want %d", len(list), n)
	}

	seen := make(map[int64]bool, n)
	for _, todo := range list {
		if seen[todo.ID] {
			t.Errorf("duplicate id %d", todo.ID)
		}
		seen[todo.ID] = true
	}
}
