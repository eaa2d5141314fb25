// Package push はボランティア端末への着信通知を配信するプッシュゲートウェイを提供する。
//
// FCMGateway はFirebase Cloud Messaging HTTP v1 APIへ通知を送信する。
// LogGateway は送信の代わりにログ出力だけを行う開発用の実装。
//
// どちらも送信のリトライは行わない。失敗時の扱い（予約の取り消し等）は呼び出し側が決める。
package push
