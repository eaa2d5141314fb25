package push

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nao1215/seeforme/pkg/httpclient"
)

// messagingScope はFCM HTTP v1 APIの送信に必要なOAuth2スコープ。
const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// NewFCMClient はサービスアカウント鍵からFCM用のHTTPクライアントを生成する。
// アクセストークンは有効期限が切れると自動で再発行される。
// 第2戻り値は鍵に含まれるプロジェクトID。
func NewFCMClient(ctx context.Context, endpoint string, credentialsJSON []byte, timeout time.Duration) (*httpclient.Client, string, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, messagingScope)
	if err != nil {
		return nil, "", fmt.Errorf("FCM認証情報の読み込みに失敗: %w", err)
	}
	return NewTokenSourceClient(ctx, endpoint, creds.TokenSource, timeout), creds.ProjectID, nil
}

// NewTokenSourceClient はtsから取得したアクセストークンを各リクエストに付与するクライアントを生成する。
func NewTokenSourceClient(ctx context.Context, endpoint string, ts oauth2.TokenSource, timeout time.Duration) *httpclient.Client {
	return httpclient.New(endpoint,
		httpclient.WithHTTPClient(oauth2.NewClient(ctx, ts)),
		httpclient.WithTimeout(timeout),
	)
}
