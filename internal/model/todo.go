package model

import "time"

// Todo はユーザーごとのToDo項目を表す。
// UserIDは作成したユーザーのIDで、全操作で所有者チェックに使われる。
type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	UserID      UserID    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TodoPatch はToDoの部分更新内容を表す。nilのフィールドは変更しない。
type TodoPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}
