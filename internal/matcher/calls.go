package matcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/nao1215/seeforme/internal/push"
	"github.com/nao1215/seeforme/internal/registry"
	"github.com/nao1215/seeforme/pkg/event"
)

// CallFailure は宛先1名への呼び出しの失敗。
type CallFailure struct {
	// VolunteerID は失敗した宛先のボランティアID。
	VolunteerID string
	// Reason は失敗の理由。
	Reason string
}

// BroadcastResult は一斉呼び出しの結果。
type BroadcastResult struct {
	// SuccessCount は通知を受理された宛先の数。
	SuccessCount int
	// FailureCount は通知できなかった宛先の数。
	FailureCount int
	// Failures は失敗した宛先と理由。
	Failures []CallFailure
}

// recipient は一斉呼び出しの宛先。
type recipient struct {
	volunteerID string
	token       string
}

// Broadcast はmeetingIDの通話への参加をボランティアに一斉に呼びかける。
// volunteerIDsが空の場合は対応可能でトークン登録済みのボランティア全員が宛先になる。
// 指定した場合は対応可否に関係なくその全員に送り、存在しないIDやトークン未登録は失敗として数える。
// 一斉呼び出しはボランティアを予約しない。最初に応答した人が通話に参加する。
func (m *Matcher) Broadcast(ctx context.Context, meetingID string, volunteerIDs []string) (BroadcastResult, error) {
	res, err := m.broadcast(ctx, meetingID, volunteerIDs)
	m.metrics.observeCall("broadcast", outcomeLabel(err))
	return res, err
}

func (m *Matcher) broadcast(ctx context.Context, meetingID string, volunteerIDs []string) (BroadcastResult, error) {
	if meetingID == "" {
		return BroadcastResult{}, invalidArgument("meetingIdは必須です")
	}
	if m.directory == nil {
		return BroadcastResult{}, internal("宛先の台帳が設定されていません", nil)
	}
	logger := m.logger.With().Str("meeting_id", meetingID).Logger()

	recipients, failures, err := m.recipients(ctx, volunteerIDs)
	if err != nil {
		return BroadcastResult{}, err
	}
	if len(recipients) == 0 && len(failures) == 0 {
		return BroadcastResult{}, notFound("対応可能なボランティアがいません")
	}

	tokens := lo.Map(recipients, func(r recipient, _ int) string { return r.token })
	batch := push.SendEach(ctx, m.sender, tokens, push.BroadcastCallMessage(meetingID))

	res := BroadcastResult{
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount + len(failures),
		Failures:     failures,
	}
	for i, r := range batch.Responses {
		m.metrics.observePush(r.Err == nil)
		if r.Err != nil {
			logger.Warn().Err(r.Err).Str("volunteer_id", recipients[i].volunteerID).Msg("一斉呼び出しの送信に失敗しました")
			res.Failures = append(res.Failures, CallFailure{VolunteerID: recipients[i].volunteerID, Reason: r.Err.Error()})
		}
	}

	// 送信後の記録は呼び出し元のキャンセルに関係なく残す。
	m.record(context.WithoutCancel(ctx), logger, meetingID, event.AggregateTypeMeeting, event.TypeCallBroadcast,
		event.CallBroadcastData{MeetingID: meetingID, SuccessCount: res.SuccessCount, FailureCount: res.FailureCount})
	logger.Info().Int("success", res.SuccessCount).Int("failure", res.FailureCount).Msg("ボランティアに一斉呼び出しを送信しました")

	if res.SuccessCount == 0 {
		return res, internal("全ての宛先への通知に失敗しました", nil)
	}
	return res, nil
}

// recipients は一斉呼び出しの宛先を決める。宛先にできなかった指定IDは失敗として返す。
func (m *Matcher) recipients(ctx context.Context, volunteerIDs []string) ([]recipient, []CallFailure, error) {
	if len(volunteerIDs) == 0 {
		volunteers, err := m.directory.ListAvailableWithPushToken(ctx)
		if err != nil {
			return nil, nil, internal("ボランティアの検索に失敗しました", err)
		}
		return lo.Map(volunteers, func(v registry.Volunteer, _ int) recipient {
			return recipient{volunteerID: v.ID, token: v.PushToken}
		}), nil, nil
	}

	var (
		recipients []recipient
		failures   []CallFailure
	)
	for _, id := range lo.Uniq(volunteerIDs) {
		v, err := m.directory.Get(ctx, id)
		if errors.Is(err, registry.ErrNotFound) {
			failures = append(failures, CallFailure{VolunteerID: id, Reason: "ボランティアが見つかりません"})
			continue
		}
		if err != nil {
			return nil, nil, internal("ボランティアの取得に失敗しました", err)
		}
		if !v.HasPushToken() {
			failures = append(failures, CallFailure{VolunteerID: id, Reason: "ボランティアの端末が登録されていません"})
			continue
		}
		recipients = append(recipients, recipient{volunteerID: v.ID, token: v.PushToken})
	}
	return recipients, failures, nil
}

// CallVolunteer はcallerからvolunteerIDのボランティアへビデオ通話の着信通知を送り、メッセージ識別子を返す。
// meetingIDは任意。ボランティアの対応可否は変更しない。
func (m *Matcher) CallVolunteer(ctx context.Context, volunteerID string, caller push.Caller, meetingID string) (string, error) {
	messageID, err := m.callVolunteer(ctx, volunteerID, caller, meetingID)
	m.metrics.observeCall("direct", outcomeLabel(err))
	return messageID, err
}

func (m *Matcher) callVolunteer(ctx context.Context, volunteerID string, caller push.Caller, meetingID string) (string, error) {
	if volunteerID == "" {
		return "", invalidArgument("volunteerIdは必須です")
	}
	if m.directory == nil {
		return "", internal("宛先の台帳が設定されていません", nil)
	}
	logger := m.logger.With().Str("volunteer_id", volunteerID).Str("caller_id", caller.ID).Logger()

	v, err := m.directory.Get(ctx, volunteerID)
	if errors.Is(err, registry.ErrNotFound) {
		return "", notFound("ボランティアが見つかりません")
	}
	if err != nil {
		return "", internal("ボランティアの取得に失敗しました", err)
	}
	if !v.HasPushToken() {
		return "", failedPrecondition("ボランティアの端末が登録されていません")
	}

	messageID, err := m.sender.Send(ctx, v.PushToken, push.DirectCallMessage(caller, meetingID, time.Now()))
	if err != nil {
		m.metrics.observePush(false)
		logger.Warn().Err(err).Msg("個別呼び出しの送信に失敗しました")
		m.record(context.WithoutCancel(ctx), logger, v.ID, event.AggregateTypeVolunteer, event.TypeCallNotificationFailed,
			event.CallNotificationFailedData{MeetingID: meetingID, Reason: err.Error()})
		return "", internal("着信通知の送信に失敗しました", err)
	}
	m.metrics.observePush(true)

	m.record(ctx, logger, v.ID, event.AggregateTypeVolunteer, event.TypeCallNotificationSent,
		event.CallNotificationSentData{MeetingID: meetingID, MessageID: messageID})
	logger.Info().Str("message_id", messageID).Msg("ボランティアに個別呼び出しを送信しました")

	return messageID, nil
}

// outcomeLabel はメトリクスのoutcomeラベルを返す。
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(KindOf(err)))
}
