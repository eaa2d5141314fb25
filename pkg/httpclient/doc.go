// Package httpclient は外部サービスとのJSON HTTP通信を行うクライアントを提供する。
//
// プッシュゲートウェイ（FCM HTTP v1 API）への送信に使用する。
// 認証ヘッダーやタイムアウトはOptionで設定する。
package httpclient
