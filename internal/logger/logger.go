package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelFor は実行環境に応じたログレベルを返す。
// 本番ではInfo、それ以外ではDebugまで出力する。
func LevelFor(nodeEnv string) slog.Level {
	if strings.EqualFold(nodeEnv, "production") {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、設定したロガーを返す。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := Setup(w, level)
	slog.SetDefault(l)
	return l
}
