package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeVolunteer はボランティアエンティティを表す。
	AggregateTypeVolunteer AggregateType = "Volunteer"
	// AggregateTypeMeeting は支援通話（ミーティング）エンティティを表す。
	AggregateTypeMeeting AggregateType = "Meeting"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeVolunteerRegistered はボランティアが登録されたことを表す。
	TypeVolunteerRegistered Type = "VolunteerRegistered"
	// TypePushTokenUpdated はボランティア端末のプッシュトークンが更新されたことを表す。
	TypePushTokenUpdated Type = "PushTokenUpdated"
	// TypeAvailabilityChanged はボランティア自身が対応可否を切り替えたことを表す。
	TypeAvailabilityChanged Type = "AvailabilityChanged"

	// TypeVolunteerReserved はマッチングによりボランティアが確保（予約）されたことを表す。
	TypeVolunteerReserved Type = "VolunteerReserved"
	// TypeVolunteerReleased は通知失敗の補償アクションにより予約が解除されたことを表す。
	TypeVolunteerReleased Type = "VolunteerReleased"

	// TypeCallNotificationSent は着信通知がプッシュゲートウェイに受理されたことを表す。
	TypeCallNotificationSent Type = "CallNotificationSent"
	// TypeCallNotificationFailed は着信通知の送信に失敗したことを表す。
	TypeCallNotificationFailed Type = "CallNotificationFailed"
	// TypeCallBroadcast はボランティアへの一斉呼び出しを送信したことを表す。
	TypeCallBroadcast Type = "CallBroadcast"
)

// Event はボランティア台帳に追記される不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// VolunteerRegisteredData はVolunteerRegisteredイベントのデータ。
type VolunteerRegisteredData struct {
	// UserID はボランティアに紐づく認証ユーザーのID。
	UserID string `json:"user_id"`
	// DisplayName はボランティアの表示名。
	DisplayName string `json:"display_name"`
	// HasPushToken は登録時にプッシュトークンが設定されていたかどうか。
	HasPushToken bool `json:"has_push_token"`
}

// PushTokenUpdatedData はPushTokenUpdatedイベントのデータ。
// トークン自体は機密扱いのため記録しない。
type PushTokenUpdatedData struct {
	// UserID は更新を実行したユーザーのID。
	UserID string `json:"user_id"`
	// Cleared はトークンが削除された場合にtrue。
	Cleared bool `json:"cleared"`
}

// AvailabilityChangedData はAvailabilityChangedイベントのデータ。
type AvailabilityChangedData struct {
	// UserID は変更を実行したユーザーのID。
	UserID string `json:"user_id"`
	// IsAvailable は変更後の対応可否。
	IsAvailable bool `json:"is_available"`
}

// VolunteerReservedData はVolunteerReservedイベントのデータ。
type VolunteerReservedData struct {
	// MeetingID は予約の対象となったミーティングID。
	MeetingID string `json:"meeting_id"`
	// Atomic は条件付き更新で確保された場合にtrue。
	Atomic bool `json:"atomic"`
}

// VolunteerReleasedData はVolunteerReleasedイベントのデータ。
type VolunteerReleasedData struct {
	// MeetingID は解除された予約のミーティングID。
	MeetingID string `json:"meeting_id"`
	// Reason は予約解除の理由。
	Reason string `json:"reason"`
}

// CallNotificationSentData はCallNotificationSentイベントのデータ。
type CallNotificationSentData struct {
	// MeetingID は通知したミーティングID。
	MeetingID string `json:"meeting_id"`
	// MessageID はプッシュゲートウェイが払い出したメッセージ識別子。
	MessageID string `json:"message_id"`
}

// CallNotificationFailedData はCallNotificationFailedイベントのデータ。
type CallNotificationFailedData struct {
	// MeetingID は通知しようとしたミーティングID。
	MeetingID string `json:"meeting_id"`
	// Reason は送信失敗の理由。
	Reason string `json:"reason"`
}

// CallBroadcastData はCallBroadcastイベントのデータ。
type CallBroadcastData struct {
	// MeetingID は呼びかけたミーティングID。
	MeetingID string `json:"meeting_id"`
	// SuccessCount は通知を受理された宛先の数。
	SuccessCount int `json:"success_count"`
	// FailureCount は通知できなかった宛先の数。
	FailureCount int `json:"failure_count"`
}
