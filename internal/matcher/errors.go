package matcher

import (
	"errors"
	"fmt"
)

// Kind は呼び出し元に返すエラーの種類。
type Kind string

const (
	// KindInvalidArgument はmeetingIdが空など、入力が不正であることを表す。
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindNotFound は対応可能なボランティアがいないことを表す。
	KindNotFound Kind = "NOT_FOUND"
	// KindFailedPrecondition は呼び出し先の端末が未登録など、宛先の状態により処理できないことを表す。
	KindFailedPrecondition Kind = "FAILED_PRECONDITION"
	// KindInternal はトークン未登録、通知失敗、台帳エラーなどの内部エラーを表す。
	KindInternal Kind = "INTERNAL"
)

// Error はマッチング処理のエラー。Kindで呼び出し元への応答を決める。
type Error struct {
	// Kind はエラーの種類。
	Kind Kind
	// Message は呼び出し元に返すメッセージ。
	Message string
	// Err は原因となったエラー。無い場合はnil。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はerrのエラー種類を返す。*Error以外のエラーはKindInternalとして扱う。
// errがnilの場合は空文字列を返す。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

func invalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func failedPrecondition(msg string) *Error {
	return &Error{Kind: KindFailedPrecondition, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
