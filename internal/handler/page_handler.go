package handler

import (
	"io/fs"
	"log/slog"
	"net/http"
)

// PageHandler は埋め込みのHTMLページを返すハンドラー。
type PageHandler struct {
	views fs.FS
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(views fs.FS) *PageHandler {
	return &PageHandler{views: views}
}

// Serve は指定したHTMLファイルを返すhttp.HandlerFuncを生成する。
func (h *PageHandler) Serve(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(h.views, name)
		if err != nil {
			slog.Error("failed to read page",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// Health はヘルスチェック用のハンドラー。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
