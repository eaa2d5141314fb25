package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/nao1215/seeforme/pkg/httpclient"
)

// FCMGateway はFCM HTTP v1 APIでメッセージを送信するゲートウェイ。
type FCMGateway struct {
	client    *httpclient.Client
	projectID string
	logger    zerolog.Logger
}

// NewFCMGateway はFCMGatewayを生成する。
// clientにはNewFCMClientまたはNewTokenSourceClientで生成したクライアントを渡す。
func NewFCMGateway(client *httpclient.Client, projectID string, logger zerolog.Logger) *FCMGateway {
	return &FCMGateway{
		client:    client,
		projectID: projectID,
		logger:    logger.With().Str("component", "fcm").Logger(),
	}
}

// fcmSendRequest はmessages:sendのリクエストボディ。
type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroidConfig  `json:"android"`
}

type fcmAndroidConfig struct {
	Priority string `json:"priority"`
}

// fcmSendResponse はmessages:sendのレスポンスボディ。
type fcmSendResponse struct {
	// Name は "projects/{project}/messages/{id}" 形式のメッセージ名。
	Name string `json:"name"`
}

// fcmErrorResponse はFCMのエラーレスポンス。
type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send はtokenの端末にmsgを送信し、FCMが払い出したメッセージ名を返す。
func (g *FCMGateway) Send(ctx context.Context, token string, msg Message) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	path := fmt.Sprintf("/v1/projects/%s/messages:send", url.PathEscape(g.projectID))
	req := fcmSendRequest{
		Message: fcmMessage{
			Token:        token,
			Notification: msg.Notification,
			Data:         msg.Data,
			// 着信通知は即時に端末を起こす必要がある
			Android: fcmAndroidConfig{Priority: "high"},
		},
	}

	var resp fcmSendResponse
	if err := g.client.PostJSON(ctx, path, req, &resp); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", g.classify(statusErr)
		}
		return "", fmt.Errorf("FCMへの送信に失敗: %w", err)
	}

	g.logger.Debug().Str("message_name", resp.Name).Msg("FCMがメッセージを受理しました")
	return resp.Name, nil
}

// classify はFCMのエラーレスポンスをエラーに変換する。
func (g *FCMGateway) classify(statusErr *httpclient.StatusError) error {
	var body fcmErrorResponse
	_ = json.Unmarshal(statusErr.Body, &body)

	unregistered := statusErr.StatusCode == http.StatusNotFound
	for _, d := range body.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			unregistered = true
		}
	}
	if unregistered {
		return fmt.Errorf("%w: %s", ErrUnregisteredToken, body.Error.Message)
	}

	return fmt.Errorf("FCMへの送信に失敗: %w", statusErr)
}
