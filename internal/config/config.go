// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// アカウント設定
	AppUsername     string // ログイン用メールアドレス
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	AccountsFile    string // 複数アカウントを定義した YAML ファイル（任意）

	// セッション・トークン設定
	SessionSecret   string // セッションCookie署名用の秘密鍵
	TokenSecret     string // セッショントークン（JWT）署名用の秘密鍵
	TokenTTLMinutes int    // セッショントークンの有効期間（分）

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// Redis設定（セッション保存・送信試行の記録・Asynq）
	RedisURL             string
	AttemptExpireMinutes int // 送信試行記録の保持期間（分）

	// フォーム設定
	AuthTimeoutSeconds int    // 認証呼び出し1回あたりの上限（秒）。0で無制限
	PostLoginPath      string // ログイン成功後の遷移先
	FormIdleMinutes    int    // 操作のないフォームを破棄するまでの時間（分）

	// CLIクライアント設定
	AuthServerURL string // 認証APIのベースURL
	SessionDir    string // CLIがセッションを保存するディレクトリ
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		AccountsFile:    getEnv("ACCOUNTS_FILE", ""),

		SessionSecret:   getEnv("SESSION_SECRET", ""),
		TokenSecret:     getEnv("TOKEN_SECRET", ""),
		TokenTTLMinutes: getEnvAsInt("TOKEN_TTL_MINUTES", 720),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		RedisURL:             getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		AttemptExpireMinutes: getEnvAsInt("ATTEMPT_EXPIRE_MINUTES", 60),

		AuthTimeoutSeconds: getEnvAsInt("AUTH_TIMEOUT_SECONDS", 10),
		PostLoginPath:      getEnv("POST_LOGIN_PATH", "/dashboard"),
		FormIdleMinutes:    getEnvAsInt("FORM_IDLE_MINUTES", 30),

		AuthServerURL: getEnv("AUTH_SERVER_URL", "http://localhost:8080"),
		SessionDir:    getEnv("SESSION_DIR", defaultSessionDir()),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func defaultSessionDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".signin"
	}
	return filepath.Join(dir, "signin")
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.AuthTimeoutSeconds < 0 {
		return fmt.Errorf("AUTH_TIMEOUT_SECONDS must not be negative")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive")
	}
	if c.PostLoginPath == "" || c.PostLoginPath[0] != '/' {
		return fmt.Errorf("POST_LOGIN_PATH must be an absolute path")
	}

	// ローカル開発では認証設定は任意
	if c.GinMode == "release" {
		if c.AppUsername == "" && c.AccountsFile == "" {
			return fmt.Errorf("APP_USERNAME or ACCOUNTS_FILE is required in release mode")
		}
		if c.AppUsername != "" && c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.TokenSecret == "" {
			return fmt.Errorf("TOKEN_SECRET is required in release mode")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
	}

	return nil
}

// AuthTimeout は認証呼び出し1回あたりの上限です。
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSeconds) * time.Second
}

// TokenTTL はセッショントークンの有効期間です。
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// FormIdleTimeout は操作のないフォームを破棄するまでの時間です。
func (c *Config) FormIdleTimeout() time.Duration {
	return time.Duration(c.FormIdleMinutes) * time.Minute
}

// AttemptTTL は送信試行記録の保持期間です。
func (c *Config) AttemptTTL() time.Duration {
	minutes := c.AttemptExpireMinutes
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
