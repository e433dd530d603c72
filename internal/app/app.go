package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/todoclient/internal/auth"
	"github.com/hitoshi/todoclient/internal/config"
	"github.com/hitoshi/todoclient/internal/handler"
	"github.com/hitoshi/todoclient/internal/identity"
	"github.com/hitoshi/todoclient/internal/logger"
	"github.com/hitoshi/todoclient/internal/metrics"
	"github.com/hitoshi/todoclient/internal/session"
	"github.com/hitoshi/todoclient/internal/todo"
	"github.com/hitoshi/todoclient/internal/web"
	"github.com/hitoshi/todoclient/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// defaultPort はPORT未設定時の待ち受けポート。
const defaultPort = "3001"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、NODE_ENVに応じたレベルでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めなくてもエラーログは出せるようにする
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. ログの初期化
	logger.SetupDefault(w, logger.LevelFor(cfg.NodeEnv))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = defaultPort
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("node_env", cfg.NodeEnv),
		slog.String("auth_service_url", cfg.AuthServiceURL),
	)

	return runServe(cfg)
}

// newServer は全依存関係をワイヤリングしたhttp.Serverを構築する。
func newServer(cfg *config.Config, sessionStore session.Store) *http.Server {
	logger := slog.Default()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. IDサービスクライアント
	identityClient := identity.NewClient(
		&http.Client{Timeout: cfg.AuthServiceTimeout},
		logger,
		collector,
		identity.Config{
			BaseURL:      cfg.AuthServiceURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			CookieDomain: cfg.CookieDomain,
		},
	)

	// 3. セッションとToDoストア
	sessions := session.NewManager(sessionStore, session.ManagerConfig{
		Secret:       cfg.SessionSecret,
		CookieSecure: cfg.CookieSecure(),
	})
	todos := todo.NewMemoryStore()

	// 4. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:       logger,
		Sessions:     sessions,
		Introspector: identityClient,
		Production:   cfg.Production(),

		OAuthFlow: auth.NewFlow(identityClient, logger),
		Identity:  identityClient,
		Account: handler.AccountHandlerConfig{
			Cookies:               handler.CookieConfig{Secure: cfg.CookieSecure()},
			DirectLoginSetCookies: cfg.DirectLoginSetCookies,
		},

		Todos: todos,

		Views:  web.Views(),
		Static: web.Static(),

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
	}

	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AuthServiceTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// runServe はWebサーバーモードで起動する。
// 期限切れセッションのクリーンアップジョブをバックグラウンドで動かし、
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	sessionStore := session.NewMemoryStore()
	server := newServer(cfg, sessionStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanup.NewCleanupJob(sessionStore, slog.Default()).Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
