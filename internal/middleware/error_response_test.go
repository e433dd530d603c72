package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoclient/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewTitleRequiredError())

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if raw["success"] != false {
		t.Errorf("success = %v, want false", raw["success"])
	}
	if raw["message"] != "Title is required" {
		t.Errorf("message = %v, want %q", raw["message"], "Title is required")
	}
	if len(raw) != 2 {
		t.Errorf("unexpected fields in body: %v", raw)
	}
}

// TestWriteErrorMessage_DifferentStatusCodes は異なるステータスコードで正しく動作することを検証する。
func TestWriteErrorMessage_DifferentStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		message    string
	}{
		{"Unauthorized", http.StatusUnauthorized, "Invalid credentials"},
		{"NotFound", http.StatusNotFound, "Todo not found"},
		{"Conflict", http.StatusConflict, "Email already registered"},
		{"BadGateway", http.StatusBadGateway, "Login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorMessage(w, tt.statusCode, tt.message)

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}

			if body.Success {
				t.Error("success should be false")
			}
			if body.Message != tt.message {
				t.Errorf("message = %q, want %q", body.Message, tt.message)
			}
		})
	}
}

// TestInternalServerError_ReturnsGenericMessage は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsGenericMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Success {
		t.Error("success should be false")
	}
	if body.Message != "Internal server error" {
		t.Errorf("message = %q, want %q", body.Message, "Internal server error")
	}
}

func TestWriteJSON_EncodesValue(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusCreated, map[string]any{"success": true})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Body.String(); got != "{\"success\":true}\n" {
		t.Errorf("body = %q", got)
	}
}
