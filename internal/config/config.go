// Package config は環境変数からマッチングサービスの設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// プッシュゲートウェイの種類。
const (
	PushGatewayFCM = "fcm"
	PushGatewayLog = "log"
)

// Config はマッチングサービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT,default=8080" validate:"required,numeric"`
	// DatabasePath はボランティア台帳のSQLiteファイル。":memory:" も指定できる。
	DatabasePath string `env:"DATABASE_PATH,default=/data/matcher.db" validate:"required"`
	// JWTSecret はJWT検証の共有鍵。
	JWTSecret string `env:"JWT_SECRET,default=dev-secret-key" validate:"required"`
	// AllowedOrigins はCORSで許可するオリジンのカンマ区切り。
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	// PushGateway は着信通知の送信先。fcmまたはlog。
	PushGateway string `env:"PUSH_GATEWAY,default=log" validate:"oneof=fcm log"`
	// FCMEndpoint はFCM HTTP v1 APIのベースURL。
	FCMEndpoint string `env:"FCM_ENDPOINT,default=https://fcm.googleapis.com" validate:"required,url"`
	// FCMCredentialsFile はサービスアカウント鍵（JSON）のパス。
	// アクセストークンはここから発行し、期限切れの前に自動で更新する。
	FCMCredentialsFile string `env:"FCM_CREDENTIALS_FILE" validate:"required_if=PushGateway fcm"`
	// FCMProjectID はFirebaseプロジェクトID。空の場合はサービスアカウント鍵のproject_idを使う。
	FCMProjectID string `env:"FCM_PROJECT_ID"`
	// PushTimeout は1回の通知送信のタイムアウト。
	PushTimeout time.Duration `env:"PUSH_TIMEOUT,default=10s" validate:"gt=0"`

	// ClaimMode はボランティアの予約方法。best_effortまたはatomic。
	ClaimMode string `env:"CLAIM_MODE,default=best_effort" validate:"oneof=best_effort atomic"`
	// MaxClaimAttempts はatomicで競合した場合に選び直す回数の上限。
	MaxClaimAttempts int `env:"MAX_CLAIM_ATTEMPTS,default=3" validate:"min=1,max=10"`

	// AppEnv は実行環境。devの場合はログを人が読める形式で出力する。
	AppEnv string `env:"APP_ENV,default=prod"`
	// LogLevel はログレベル。
	LogLevel string `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load はプロセスの環境変数から設定を読み込んで検証する。
func Load() (*Config, error) {
	return LoadFrom(os.Environ())
}

// LoadFrom は "KEY=VALUE" 形式の環境変数リストから設定を読み込んで検証する。
func LoadFrom(environ []string) (*Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return &cfg, nil
}

// Origins はAllowedOriginsを分割して返す。空要素は除く。
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsDev は開発環境かどうかを返す。
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.AppEnv, "dev")
}
