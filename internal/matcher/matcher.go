//go:generate go run go.uber.org/mock/mockgen -source=matcher.go -destination=mock/mock_matcher.go -package=mock

package matcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/seeforme/internal/push"
	"github.com/nao1215/seeforme/internal/registry"
	"github.com/nao1215/seeforme/pkg/event"
)

// Registry はマッチングが利用するボランティア台帳の操作。
type Registry interface {
	// QueryOneAvailable は対応可能なボランティアを1件返す。いなければ第2戻り値がfalse。
	QueryOneAvailable(ctx context.Context) (registry.Volunteer, bool, error)
	// SetAvailability は対応可否を無条件に更新する。
	SetAvailability(ctx context.Context, id string, available bool) error
	// ClaimAvailability は対応可能な場合に限り予約済みにする。
	ClaimAvailability(ctx context.Context, id string) (bool, error)
}

// Directory は一斉呼び出しと個別呼び出しの宛先を台帳から引く操作。
type Directory interface {
	// ListAvailableWithPushToken は対応可能でプッシュトークンが登録済みのボランティアを返す。
	ListAvailableWithPushToken(ctx context.Context) ([]registry.Volunteer, error)
	// Get はIDでボランティアを取得する。存在しない場合はregistry.ErrNotFoundを返す。
	Get(ctx context.Context, id string) (registry.Volunteer, error)
}

// PushSender は着信通知の送信先。
type PushSender interface {
	Send(ctx context.Context, token string, msg push.Message) (string, error)
}

// EventRecorder はマッチングの各段階をドメインイベントとして記録する。
type EventRecorder interface {
	AppendEvent(ctx context.Context, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) (*event.Event, error)
}

// ClaimMode はボランティアの予約方法。
type ClaimMode string

const (
	// ClaimBestEffort は選択したボランティアを無条件に予約済みにする。
	// 同時実行されたマッチングが同じボランティアを予約しうる。
	ClaimBestEffort ClaimMode = "best_effort"
	// ClaimAtomic は対応可能な場合に限り予約済みにする条件付き更新を使う。
	// 他のマッチングに先を越された場合は選択からやり直す。
	ClaimAtomic ClaimMode = "atomic"
)

// DefaultMaxClaimAttempts はClaimAtomicで選択をやり直す回数の既定値。
const DefaultMaxClaimAttempts = 3

// Result はマッチング成功時の結果。
type Result struct {
	// Success は常にtrue。
	Success bool
	// VolunteerID は予約したボランティアのID。
	VolunteerID string
	// MessageID はプッシュゲートウェイが払い出したメッセージ識別子。
	MessageID string
}

// Matcher は支援依頼をボランティアに割り当てる。
// 一斉呼び出しと個別呼び出しも扱う。
// 状態を持たないため、複数のgoroutineから同時に呼び出してよい。
type Matcher struct {
	registry    Registry
	directory   Directory
	sender      PushSender
	recorder    EventRecorder
	metrics     *Metrics
	logger      zerolog.Logger
	mode        ClaimMode
	maxAttempts int
}

// Option はMatcherの設定を変更する関数。
type Option func(*Matcher)

// WithEventRecorder はドメインイベントの記録先を設定する。
func WithEventRecorder(r EventRecorder) Option {
	return func(m *Matcher) {
		m.recorder = r
	}
}

// WithDirectory は呼び出しの宛先を引く台帳を設定する。
// 設定しない場合、BroadcastとCallVolunteerはKindInternalのエラーを返す。
func WithDirectory(d Directory) Option {
	return func(m *Matcher) {
		m.directory = d
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(metrics *Metrics) Option {
	return func(m *Matcher) {
		m.metrics = metrics
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger.With().Str("component", "matcher").Logger()
	}
}

// WithClaimMode は予約方法を設定する。maxAttemptsはClaimAtomicでのみ使われ、
// 1未満の場合はDefaultMaxClaimAttemptsになる。
func WithClaimMode(mode ClaimMode, maxAttempts int) Option {
	return func(m *Matcher) {
		m.mode = mode
		if maxAttempts < 1 {
			maxAttempts = DefaultMaxClaimAttempts
		}
		m.maxAttempts = maxAttempts
	}
}

// New は新しいMatcherを生成する。既定の予約方法はClaimBestEffort。
func New(reg Registry, sender PushSender, opts ...Option) *Matcher {
	m := &Matcher{
		registry:    reg,
		sender:      sender,
		logger:      zerolog.Nop(),
		mode:        ClaimBestEffort,
		maxAttempts: DefaultMaxClaimAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match はmeetingIDの支援依頼を対応可能なボランティア1名に割り当て、着信通知を送る。
// 通知に失敗した場合は予約を取り消してからKindInternalのエラーを返す。
func (m *Matcher) Match(ctx context.Context, meetingID string) (Result, error) {
	start := time.Now()
	res, err := m.match(ctx, meetingID)
	m.metrics.observeRequest(outcomeLabel(err), time.Since(start))

	return res, err
}

func (m *Matcher) match(ctx context.Context, meetingID string) (Result, error) {
	if meetingID == "" {
		return Result{}, invalidArgument("meetingIdは必須です")
	}
	logger := m.logger.With().Str("meeting_id", meetingID).Logger()

	volunteer, err := m.reserve(ctx, logger, meetingID)
	if err != nil {
		return Result{}, err
	}
	logger = logger.With().Str("volunteer_id", volunteer.ID).Logger()

	messageID, err := m.sender.Send(ctx, volunteer.PushToken, push.IncomingCallMessage(meetingID))
	if err != nil {
		m.metrics.observePush(false)
		logger.Warn().Err(err).Msg("着信通知の送信に失敗したため予約を取り消します")
		// 失敗の記録と予約の取り消しは呼び出し元がキャンセルしても最後まで行う。
		detached := context.WithoutCancel(ctx)
		m.record(detached, logger, meetingID, event.AggregateTypeMeeting, event.TypeCallNotificationFailed,
			event.CallNotificationFailedData{MeetingID: meetingID, Reason: err.Error()})
		m.release(detached, logger, volunteer.ID, meetingID, err)
		return Result{}, internal("着信通知の送信に失敗しました", err)
	}
	m.metrics.observePush(true)

	m.record(ctx, logger, meetingID, event.AggregateTypeMeeting, event.TypeCallNotificationSent,
		event.CallNotificationSentData{MeetingID: meetingID, MessageID: messageID})
	logger.Info().Str("message_id", messageID).Msg("ボランティアに着信通知を送信しました")

	return Result{Success: true, VolunteerID: volunteer.ID, MessageID: messageID}, nil
}

// reserve は対応可能なボランティアを選び、予約済みにする。
// トークンの確認は予約より前に行うため、トークン未登録のボランティアは予約されない。
func (m *Matcher) reserve(ctx context.Context, logger zerolog.Logger, meetingID string) (registry.Volunteer, error) {
	attempts := 1
	if m.mode == ClaimAtomic {
		attempts = m.maxAttempts
	}

	for i := 0; i < attempts; i++ {
		volunteer, found, err := m.registry.QueryOneAvailable(ctx)
		if err != nil {
			return registry.Volunteer{}, internal("ボランティアの検索に失敗しました", err)
		}
		if !found {
			return registry.Volunteer{}, notFound("対応可能なボランティアがいません")
		}
		if !volunteer.HasPushToken() {
			logger.Warn().Str("volunteer_id", volunteer.ID).Msg("ボランティアのプッシュトークンが未登録です")
			return registry.Volunteer{}, internal("ボランティアのプッシュトークンが未登録です", nil)
		}

		if m.mode != ClaimAtomic {
			if err := m.registry.SetAvailability(ctx, volunteer.ID, false); err != nil {
				return registry.Volunteer{}, internal("ボランティアの予約に失敗しました", err)
			}
			m.recordReserved(ctx, logger, volunteer.ID, meetingID, false)
			return volunteer, nil
		}

		claimed, err := m.registry.ClaimAvailability(ctx, volunteer.ID)
		if err != nil {
			return registry.Volunteer{}, internal("ボランティアの予約に失敗しました", err)
		}
		if claimed {
			m.recordReserved(ctx, logger, volunteer.ID, meetingID, true)
			return volunteer, nil
		}
		m.metrics.observeClaimConflict()
		logger.Debug().Str("volunteer_id", volunteer.ID).Int("attempt", i+1).Msg("他のマッチングに先に確保されたため選び直します")
	}

	return registry.Volunteer{}, notFound("対応可能なボランティアを確保できませんでした")
}

// release は予約を取り消す補償アクション。
// ctxにはキャンセルされないコンテキストを渡す。失敗はログに残すだけで呼び出し元には返さない。
func (m *Matcher) release(ctx context.Context, logger zerolog.Logger, volunteerID, meetingID string, cause error) {
	if err := m.registry.SetAvailability(ctx, volunteerID, true); err != nil {
		m.metrics.observeCompensation(false)
		logger.Error().Err(err).AnErr("cause", cause).Msg("予約の取り消しに失敗しました")
		return
	}
	m.metrics.observeCompensation(true)

	m.record(ctx, logger, volunteerID, event.AggregateTypeVolunteer, event.TypeVolunteerReleased,
		event.VolunteerReleasedData{MeetingID: meetingID, Reason: cause.Error()})
}

func (m *Matcher) recordReserved(ctx context.Context, logger zerolog.Logger, volunteerID, meetingID string, atomic bool) {
	m.record(ctx, logger, volunteerID, event.AggregateTypeVolunteer, event.TypeVolunteerReserved,
		event.VolunteerReservedData{MeetingID: meetingID, Atomic: atomic})
}

// record はイベントを記録する。記録の失敗はマッチング結果に影響させない。
func (m *Matcher) record(ctx context.Context, logger zerolog.Logger, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) {
	if m.recorder == nil {
		return
	}
	if _, err := m.recorder.AppendEvent(ctx, aggregateID, aggregateType, eventType, data); err != nil {
		logger.Error().Err(err).Str("event_type", string(eventType)).Msg("イベントの記録に失敗しました")
	}
}
