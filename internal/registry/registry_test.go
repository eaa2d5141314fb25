package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nao1215/seeforme/pkg/event"
)

// setupTestStore はテスト用の台帳をインメモリSQLiteで構築する。
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("台帳の初期化に失敗: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// registerTestVolunteer はテスト用にボランティアを登録するヘルパー関数。
func registerTestVolunteer(t *testing.T, s *Store, userID, token string, available bool) Volunteer {
	t.Helper()

	v, err := s.Register(context.Background(), RegisterParams{
		UserID:      userID,
		DisplayName: "name-" + userID,
		PushToken:   token,
		IsAvailable: available,
	})
	if err != nil {
		t.Fatalf("テスト用ボランティアの登録に失敗: %v", err)
	}
	return v
}

// TestRegister はボランティア登録を検証する。
func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("IDが払い出され、入力値が保存されること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		v := registerTestVolunteer(t, s, "user-1", "fcm-token-1", true)

		if v.ID == "" {
			t.Error("IDが空文字列")
		}
		if v.UserID != "user-1" {
			t.Errorf("UserID = %q, want %q", v.UserID, "user-1")
		}
		if !v.IsAvailable {
			t.Error("IsAvailable = false, want true")
		}
		if v.PushToken != "fcm-token-1" || !v.HasPushToken() {
			t.Errorf("PushToken = %q, want %q", v.PushToken, "fcm-token-1")
		}
		if v.CreatedAt.IsZero() {
			t.Error("CreatedAtがゼロ値")
		}
	})

	t.Run("トークン無しで登録できること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		v := registerTestVolunteer(t, s, "user-2", "", false)
		if v.HasPushToken() {
			t.Errorf("PushToken = %q, want empty", v.PushToken)
		}
	})

	t.Run("同じユーザーの二重登録はErrAlreadyRegisteredになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		registerTestVolunteer(t, s, "user-3", "", false)
		_, err := s.Register(context.Background(), RegisterParams{UserID: "user-3"})
		if !errors.Is(err, ErrAlreadyRegistered) {
			t.Errorf("err = %v, want ErrAlreadyRegistered", err)
		}
	})

	t.Run("user_idが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		if _, err := s.Register(context.Background(), RegisterParams{}); err == nil {
			t.Fatal("Register()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestQueryOneAvailable は対応可能なボランティアの取得を検証する。
func TestQueryOneAvailable(t *testing.T) {
	t.Parallel()

	t.Run("対応可能なボランティアがいない場合はfalseを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		registerTestVolunteer(t, s, "user-busy", "token", false)

		_, found, err := s.QueryOneAvailable(context.Background())
		if err != nil {
			t.Fatalf("QueryOneAvailable()でエラーが発生: %v", err)
		}
		if found {
			t.Error("found = true, want false")
		}
	})

	t.Run("登録順で最初の対応可能なボランティアを返すこと", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		registerTestVolunteer(t, s, "user-busy", "token-0", false)
		first := registerTestVolunteer(t, s, "user-first", "token-1", true)
		registerTestVolunteer(t, s, "user-second", "token-2", true)

		v, found, err := s.QueryOneAvailable(context.Background())
		if err != nil {
			t.Fatalf("QueryOneAvailable()でエラーが発生: %v", err)
		}
		if !found {
			t.Fatal("found = false, want true")
		}
		if v.ID != first.ID {
			t.Errorf("ID = %q, want %q", v.ID, first.ID)
		}
	})
}

// TestListAvailableWithPushToken は一斉呼び出しの宛先の抽出を検証する。
func TestListAvailableWithPushToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := setupTestStore(t)

	first := registerTestVolunteer(t, s, "user-1", "token-1", true)
	registerTestVolunteer(t, s, "user-2", "", true)
	registerTestVolunteer(t, s, "user-3", "token-3", false)
	last := registerTestVolunteer(t, s, "user-4", "token-4", true)

	got, err := s.ListAvailableWithPushToken(ctx)
	if err != nil {
		t.Fatalf("ListAvailableWithPushToken()でエラーが発生: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("件数 = %d, want 2", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != last.ID {
		t.Errorf("IDs = [%s %s], want [%s %s]", got[0].ID, got[1].ID, first.ID, last.ID)
	}

	if err := s.SetAvailability(ctx, first.ID, false); err != nil {
		t.Fatalf("SetAvailability()でエラーが発生: %v", err)
	}
	got, err = s.ListAvailableWithPushToken(ctx)
	if err != nil {
		t.Fatalf("ListAvailableWithPushToken()でエラーが発生: %v", err)
	}
	if len(got) != 1 || got[0].ID != last.ID {
		t.Errorf("got = %+v, want [%s]", got, last.ID)
	}
}

// TestSetAvailability は対応可否の更新を検証する。
func TestSetAvailability(t *testing.T) {
	t.Parallel()

	t.Run("対応可否を切り替えられること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)
		ctx := context.Background()

		v := registerTestVolunteer(t, s, "user-1", "token", true)

		if err := s.SetAvailability(ctx, v.ID, false); err != nil {
			t.Fatalf("SetAvailability(false)でエラーが発生: %v", err)
		}
		got, err := s.Get(ctx, v.ID)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.IsAvailable {
			t.Error("IsAvailable = true, want false")
		}

		// 既にfalseでも無条件に更新できること
		if err := s.SetAvailability(ctx, v.ID, false); err != nil {
			t.Fatalf("2回目のSetAvailability(false)でエラーが発生: %v", err)
		}
		if err := s.SetAvailability(ctx, v.ID, true); err != nil {
			t.Fatalf("SetAvailability(true)でエラーが発生: %v", err)
		}
		got, _ = s.Get(ctx, v.ID)
		if !got.IsAvailable {
			t.Error("IsAvailable = false, want true")
		}
	})

	t.Run("存在しないIDはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		s := setupTestStore(t)

		err := s.SetAvailability(context.Background(), "missing", true)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

// TestClaimAvailability は条件付き確保を検証する。
func TestClaimAvailability(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	v := registerTestVolunteer(t, s, "user-claim", "token", true)

	ok, err := s.ClaimAvailability(ctx, v.ID)
	if err != nil {
		t.Fatalf("ClaimAvailability()でエラーが発生: %v", err)
	}
	if !ok {
		t.Fatal("1回目の確保に失敗した")
	}

	ok, err = s.ClaimAvailability(ctx, v.ID)
	if err != nil {
		t.Fatalf("2回目のClaimAvailability()でエラーが発生: %v", err)
	}
	if ok {
		t.Error("予約済みのボランティアを二重に確保できてしまった")
	}

	ok, err = s.ClaimAvailability(ctx, "missing")
	if err != nil || ok {
		t.Errorf("存在しないID: ok=%v, err=%v", ok, err)
	}
}

// TestUpdatePushToken はプッシュトークンの更新を検証する。
func TestUpdatePushToken(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	v := registerTestVolunteer(t, s, "user-token", "", true)

	if err := s.UpdatePushToken(ctx, v.ID, "new-token"); err != nil {
		t.Fatalf("UpdatePushToken()でエラーが発生: %v", err)
	}
	got, _ := s.Get(ctx, v.ID)
	if got.PushToken != "new-token" {
		t.Errorf("PushToken = %q, want %q", got.PushToken, "new-token")
	}

	if err := s.UpdatePushToken(ctx, v.ID, ""); err != nil {
		t.Fatalf("トークン削除でエラーが発生: %v", err)
	}
	got, _ = s.Get(ctx, v.ID)
	if got.HasPushToken() {
		t.Errorf("PushToken = %q, want empty", got.PushToken)
	}

	if err := s.UpdatePushToken(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestListAndDelete は一覧取得と削除を検証する。
func TestListAndDelete(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	a := registerTestVolunteer(t, s, "user-a", "", true)
	b := registerTestVolunteer(t, s, "user-b", "", false)

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List()でエラーが発生: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("List() = %+v", list)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete()でエラーが発生: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("削除後のGet(): err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("2回目のDelete(): err = %v, want ErrNotFound", err)
	}

	got, err := s.GetByUserID(ctx, "user-b")
	if err != nil || got.ID != b.ID {
		t.Errorf("GetByUserID() = %+v, %v", got, err)
	}
}

// TestAppendEvent はイベントの追記とバージョン採番を検証する。
func TestAppendEvent(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.AppendEvent(ctx, "volunteer-1", event.AggregateTypeVolunteer, event.TypeVolunteerReserved,
		event.VolunteerReservedData{MeetingID: "meeting-1"})
	if err != nil {
		t.Fatalf("AppendEvent()でエラーが発生: %v", err)
	}
	second, err := s.AppendEvent(ctx, "volunteer-1", event.AggregateTypeVolunteer, event.TypeVolunteerReleased,
		event.VolunteerReleasedData{MeetingID: "meeting-1", Reason: "push failed"})
	if err != nil {
		t.Fatalf("2回目のAppendEvent()でエラーが発生: %v", err)
	}
	other, err := s.AppendEvent(ctx, "volunteer-2", event.AggregateTypeVolunteer, event.TypeVolunteerReserved,
		event.VolunteerReservedData{MeetingID: "meeting-2"})
	if err != nil {
		t.Fatalf("別Aggregateへの追記でエラーが発生: %v", err)
	}

	if first.Version != 1 || second.Version != 2 {
		t.Errorf("Version = %d, %d, want 1, 2", first.Version, second.Version)
	}
	if other.Version != 1 {
		t.Errorf("別AggregateのVersion = %d, want 1", other.Version)
	}

	events, err := s.ListEvents(ctx, "volunteer-1")
	if err != nil {
		t.Fatalf("ListEvents()でエラーが発生: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("イベント数 = %d, want 2", len(events))
	}
	if events[1].EventType != event.TypeVolunteerReleased {
		t.Errorf("EventType = %q, want %q", events[1].EventType, event.TypeVolunteerReleased)
	}

	var released event.VolunteerReleasedData
	if err := json.Unmarshal(events[1].Data, &released); err != nil {
		t.Fatalf("イベントデータのデシリアライズに失敗: %v", err)
	}
	if released.Reason != "push failed" {
		t.Errorf("Reason = %q, want %q", released.Reason, "push failed")
	}

	if _, err := s.AppendEvent(ctx, "", event.AggregateTypeVolunteer, event.TypeVolunteerReserved, nil); !errors.Is(err, event.ErrEmptyAggregateID) {
		t.Errorf("空のAggregateID: err = %v, want ErrEmptyAggregateID", err)
	}
}
