// Package middleware はマッチングサービスのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証とアカウント種別による認可、パニックリカバリ、CORS設定を含む。
package middleware
