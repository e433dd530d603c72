package identity

import (
	"encoding/json"
	"fmt"

	"github.com/hitoshi/todoclient/internal/model"
)

// Introspection はトークンイントロスペクションの結果を表す。
// Activeがfalseの場合、他のフィールドは設定されないことがある。
type Introspection struct {
	Active   bool           `json:"active"`
	Sub      model.UserID   `json:"sub"`
	ClientID string         `json:"client_id"`
	Scope    string         `json:"scope"`
	Exp      int64          `json:"exp"`
	Claims   map[string]any `json:"-"` // レスポンスの全フィールド
}

// parseIntrospection はイントロスペクションレスポンスを解析する。
func parseIntrospection(body []byte) (*Introspection, error) {
	var result Introspection
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse introspection response: %w", err)
	}
	if err := json.Unmarshal(body, &result.Claims); err != nil {
		return nil, fmt.Errorf("failed to parse introspection claims: %w", err)
	}
	return &result, nil
}
