// Package registry はボランティア台帳（VolunteerRegistry）のSQLite実装を提供する。
//
// マッチング処理が利用する「対応可能なボランティアを1件取得する」「対応可否を
// 更新する」操作に加え、ボランティアの登録・プッシュトークン更新と、
// 台帳に対する変更履歴（ドメインイベント）の追記を扱う。
package registry
