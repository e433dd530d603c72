package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// defaultEnvFile はENV_FILE_PATH未指定時に読み込む.envファイルのパス。
const defaultEnvFile = ".env"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Session
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`

	// Server
	NodeEnv    string `env:"NODE_ENV" envDefault:"development"`
	ServerPort string `env:"PORT" envDefault:"3001"`

	// OAuth client
	ClientID     string `env:"CLIENT_ID,required,notEmpty"`
	ClientSecret string `env:"CLIENT_SECRET,required,notEmpty"`
	RedirectURI  string `env:"REDIRECT_URI,required,notEmpty"`

	// Identity service
	AuthServiceURL     string        `env:"AUTH_SERVICE_URL,required,notEmpty"`
	AuthServiceTimeout time.Duration `env:"AUTH_SERVICE_TIMEOUT" envDefault:"10s"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN" envDefault:"localhost"`
	// DirectLoginSetCookies は/api/loginでトークンCookieを付与するかどうか。
	DirectLoginSetCookies bool `env:"DIRECT_LOGIN_SET_COOKIES" envDefault:"false"`
}

// Production は本番環境として起動しているかどうかを返す。
func (c *Config) Production() bool {
	return strings.EqualFold(c.NodeEnv, "production")
}

// CookieSecure はCookieにSecure属性を付与するかどうかを返す。
// 本番環境でのみ有効にする。
func (c *Config) CookieSecure() bool {
	return c.Production()
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envファイルは存在しなくてもよく、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.AuthServiceTimeout <= 0 {
		return nil, fmt.Errorf("AUTH_SERVICE_TIMEOUT must be positive: %s", cfg.AuthServiceTimeout)
	}

	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE_PATH")
	if path == "" {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
