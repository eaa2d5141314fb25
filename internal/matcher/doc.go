// Package matcher は支援依頼を対応可能なボランティアに割り当てるマッチングサービス。
//
// 1回のマッチングは次の順に逐次実行される。
//
//  1. 対応可能なボランティアを1件取得する
//  2. プッシュトークンの有無を確認する
//  3. ボランティアを予約済みにする
//  4. 着信通知を送信する
//  5. 送信に失敗した場合は予約を取り消す（補償アクション）
//
// 予約は既定では無条件の更新で行う。同時に実行された2つのマッチングが同じボランティアを
// 選ぶ可能性は許容している。ClaimAtomic を指定すると条件付き更新で確保し、
// 競合時は選択からやり直す。
//
// Server はこの処理をHTTPの呼び出し可能API（callable）として公開し、
// ボランティア台帳の登録系APIも提供する。
package matcher
