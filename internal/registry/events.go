package registry

import (
	"context"
	"encoding/json"
	"fmt"

	registrydb "github.com/nao1215/seeforme/internal/registry/db"
	"github.com/nao1215/seeforme/pkg/event"
)

// AppendEvent はaggregateIDのイベント列にイベントを追記する。
// バージョンは同一Aggregate内の最新バージョン+1をトランザクション内で払い出す。
func (s *Store) AppendEvent(ctx context.Context, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) (*event.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	q := s.queries.WithTx(tx)

	latest, err := q.GetLatestEventVersion(ctx, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}

	ev, err := event.New(aggregateID, aggregateType, eventType, latest+1, data)
	if err != nil {
		return nil, err
	}

	if err := q.CreateVolunteerEvent(ctx, registrydb.CreateVolunteerEventParams{
		ID:            ev.ID,
		AggregateID:   ev.AggregateID,
		AggregateType: string(ev.AggregateType),
		EventType:     string(ev.EventType),
		Data:          string(ev.Data),
		Version:       ev.Version,
		CreatedAt:     ev.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("イベントの追記に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}

	s.logger.Debug().
		Str("aggregate_id", ev.AggregateID).
		Str("event_type", string(ev.EventType)).
		Int64("version", ev.Version).
		Msg("イベントを追記しました")

	return ev, nil
}

// ListEvents はaggregateIDのイベントをバージョン順に返す。
func (s *Store) ListEvents(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.queries.ListVolunteerEvents(ctx, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗: %w", err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, event.Event{
			ID:            r.ID,
			AggregateID:   r.AggregateID,
			AggregateType: event.AggregateType(r.AggregateType),
			EventType:     event.Type(r.EventType),
			Data:          json.RawMessage(r.Data),
			Version:       r.Version,
			CreatedAt:     r.CreatedAt,
		})
	}
	return events, nil
}
