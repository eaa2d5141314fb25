package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogGateway は送信せずにメッセージをログに出力するゲートウェイ。
// FCMの認証情報が無い開発環境で使う。
type LogGateway struct {
	logger zerolog.Logger
}

// NewLogGateway はLogGatewayを生成する。
func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With().Str("component", "push-log").Logger()}
}

// Send はmsgをログに出力し、"log/" で始まる識別子を返す。
func (g *LogGateway) Send(_ context.Context, token string, msg Message) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	name := "log/" + uuid.New().String()
	g.logger.Info().
		Str("message_name", name).
		Str("title", msg.Notification.Title).
		Interface("data", msg.Data).
		Msg("プッシュ通知（送信なし）")
	return name, nil
}
