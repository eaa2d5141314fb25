// マッチングサービスのエントリポイント。
// 支援依頼を対応可能なボランティアに割り当て、着信通知を送信する。
// ボランティア台帳の管理と開発用トークン発行のサブコマンドも提供する。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .envは任意。存在しなければ環境変数だけを使う。
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
