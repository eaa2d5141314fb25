// Package event はボランティア台帳に記録するドメインイベントを定義する。
//
// ボランティアの登録・対応可否の変更と、マッチング処理の各ステップ
// （予約、着信通知、補償による予約解除）をイベントとして残す。
// イベントは追記のみで更新されない。
package event
