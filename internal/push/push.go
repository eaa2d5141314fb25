package push

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnregisteredToken は送信先トークンがゲートウェイ側で無効になっている場合に返される。
var ErrUnregisteredToken = errors.New("プッシュトークンが登録されていません")

// ErrEmptyToken は送信先トークンが空の場合に返される。
var ErrEmptyToken = errors.New("プッシュトークンが空です")

// 着信通知の文言と種別。
const (
	IncomingCallTitle = "Incoming Call for Assistance!"
	IncomingCallBody  = "A user needs your help. Tap to answer."
	IncomingCallType  = "INCOMING_CALL"
)

// Notification は端末に表示される通知の内容。
type Notification struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
}

// Message は1台の端末に送るプッシュメッセージ。
type Message struct {
	// Notification は表示用の通知。
	Notification Notification `json:"notification"`
	// Data はアプリに渡されるキーと値。FCMの制約により値は文字列のみ。
	Data map[string]string `json:"data,omitempty"`
}

// IncomingCallMessage はmeetingIDの通話への参加を促す着信通知を組み立てる。
func IncomingCallMessage(meetingID string) Message {
	return Message{
		Notification: Notification{
			Title: IncomingCallTitle,
			Body:  IncomingCallBody,
		},
		Data: map[string]string{
			"meetingId": meetingID,
			"type":      IncomingCallType,
		},
	}
}

// 一斉呼び出しの文言。
const (
	BroadcastCallTitle      = "Incoming Call for Assistance!"
	BroadcastCallBody       = "Someone needs your help. Tap to join the call."
	notificationClickAction = "FLUTTER_NOTIFICATION_CLICK"
)

// BroadcastCallMessage は対応可能なボランティア全員にmeetingIDの通話への参加を呼びかける通知を組み立てる。
func BroadcastCallMessage(meetingID string) Message {
	return Message{
		Notification: Notification{
			Title: BroadcastCallTitle,
			Body:  BroadcastCallBody,
		},
		Data: map[string]string{
			"meetingId":    meetingID,
			"click_action": notificationClickAction,
		},
	}
}

// DirectCallTitle は個別呼び出しの通知タイトル。
const DirectCallTitle = "Incoming Video Call"

// Caller は個別呼び出しの発信者。
type Caller struct {
	// ID は発信者のユーザーID。
	ID string
	// Name は通知に表示する発信者名。
	Name string
	// Email は発信者のメールアドレス。空でもよい。
	Email string
}

// DirectCallMessage は発信者から特定のボランティアへのビデオ通話の着信通知を組み立てる。
// meetingIDが空の場合はdataに含めない。
func DirectCallMessage(caller Caller, meetingID string, at time.Time) Message {
	data := map[string]string{
		"call_type":    "video",
		"call_action":  "incoming",
		"caller_id":    caller.ID,
		"caller_name":  caller.Name,
		"caller_email": caller.Email,
		"timestamp":    at.UTC().Format(time.RFC3339),
	}
	if meetingID != "" {
		data["meetingId"] = meetingID
	}
	return Message{
		Notification: Notification{
			Title: DirectCallTitle,
			Body:  fmt.Sprintf("Incoming call from %s", caller.Name),
		},
		Data: data,
	}
}

// Gateway はプッシュメッセージの送信先。
// Sendは受理されたメッセージの識別子を返す。
type Gateway interface {
	Send(ctx context.Context, token string, msg Message) (string, error)
}
