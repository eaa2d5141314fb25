package push

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentSends は一斉送信で同時に行う送信の上限。
const maxConcurrentSends = 8

// SendResult は1台の端末への送信結果。
type SendResult struct {
	// Token は送信先のプッシュトークン。
	Token string
	// MessageID は受理された場合のメッセージ識別子。
	MessageID string
	// Err は送信に失敗した場合のエラー。成功時はnil。
	Err error
}

// BatchResult は一斉送信の結果。ResponsesはtokensとSendEachに渡した順に並ぶ。
type BatchResult struct {
	Responses    []SendResult
	SuccessCount int
	FailureCount int
}

// SendEach は同じメッセージをtokensの各端末に送る。
// 1件の失敗で残りの送信を止めることはなく、結果は端末ごとに返す。
func SendEach(ctx context.Context, gw Gateway, tokens []string, msg Message) BatchResult {
	responses := make([]SendResult, len(tokens))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)
	for i, token := range tokens {
		g.Go(func() error {
			id, err := gw.Send(ctx, token, msg)
			responses[i] = SendResult{Token: token, MessageID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Responses: responses}
	for _, r := range responses {
		if r.Err != nil {
			res.FailureCount++
			continue
		}
		res.SuccessCount++
	}
	return res
}
