// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// UserID はIDサービスが払い出すユーザーIDを表す。
// JSON上の数値・文字列どちらの形式も受け付け、受け取った形式のまま出力する。
type UserID struct {
	value   string
	numeric bool
}

// NewUserID は文字列形式のユーザーIDを生成する。
func NewUserID(s string) UserID {
	return UserID{value: s}
}

// NumericUserID は数値形式のユーザーIDを生成する。
func NumericUserID(n int64) UserID {
	return UserID{value: strconv.FormatInt(n, 10), numeric: true}
}

// String はIDの文字列表現を返す。
func (id UserID) String() string {
	return id.value
}

// IsZero はIDが未設定かどうかを返す。
func (id UserID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON は受け取った形式（数値または文字列）でIDを出力する。
func (id UserID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON は数値リテラルまたは文字列リテラルからIDを読み取る。
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = UserID{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		*id = UserID{value: s}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid user id %s: %w", string(data), err)
	}
	*id = UserID{value: n.String(), numeric: true}
	return nil
}

// User はIDサービスから受け取ったユーザープロファイルを表す。
// このアプリケーションでは検証も永続化もしない。
type User struct {
	ID         UserID `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role,omitempty"`
	IsVerified bool   `json:"isVerified"`
}

// Session はブラウザごとのサーバーサイド認証状態を表す。
// セッションIDはCookieで運ばれ、それ以外のフィールドはサーバー内にのみ保持する。
type Session struct {
	ID           string
	AccessToken  string
	RefreshToken string
	User         *User
	OAuthState   string // 認可リクエスト中のみ設定される一回限りのstate
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Clone はSessionのディープコピーを返す。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}
