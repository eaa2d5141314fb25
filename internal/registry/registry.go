package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	registrydb "github.com/nao1215/seeforme/internal/registry/db"
	"github.com/nao1215/seeforme/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

var (
	// ErrNotFound は指定したボランティアが存在しない場合に返される。
	ErrNotFound = errors.New("ボランティアが見つかりません")
	// ErrAlreadyRegistered は同じユーザーが既にボランティア登録済みの場合に返される。
	ErrAlreadyRegistered = errors.New("このユーザーは既にボランティア登録されています")
)

// Volunteer はボランティア台帳の1レコードを表す。
type Volunteer struct {
	// ID は台帳が払い出す一意識別子。
	ID string
	// UserID は紐づく認証ユーザーのID。
	UserID string
	// DisplayName は表示名。
	DisplayName string
	// IsAvailable は対応可能かどうか。falseは予約済みまたは休止中。
	IsAvailable bool
	// PushToken は端末のプッシュトークン。未登録の場合は空文字列。
	PushToken string
	// CreatedAt は登録日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// HasPushToken はプッシュトークンが登録されているかを返す。
func (v Volunteer) HasPushToken() bool {
	return v.PushToken != ""
}

// RegisterParams はボランティア登録の入力。
type RegisterParams struct {
	// UserID は紐づく認証ユーザーのID。必須。
	UserID string
	// DisplayName は表示名。
	DisplayName string
	// PushToken は端末のプッシュトークン。空文字列は未登録。
	PushToken string
	// IsAvailable は登録直後から対応可能にするかどうか。
	IsAvailable bool
}

// Store はSQLiteをバックエンドとするボランティア台帳。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *registrydb.Queries
	// logger は台帳操作のロガー。
	logger zerolog.Logger
}

// Open はpathのSQLiteデータベースを開き、マイグレーションを適用した台帳を返す。
// pathに ":memory:" を指定するとインメモリデータベースになる。
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteの書き込みは直列化されるため接続は1本に絞る。
	// インメモリDBは接続ごとに別のDBになるため、この設定が必須。
	sqlDB.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, sqlDB, migrations, "migrations", logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &Store{
		db:      sqlDB,
		queries: registrydb.New(sqlDB),
		logger:  logger,
	}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// QueryOneAvailable は対応可能なボランティアを1件返す。
// 登録順で最初の1件を選ぶ。該当が無い場合は第2戻り値がfalseになる。
func (s *Store) QueryOneAvailable(ctx context.Context) (Volunteer, bool, error) {
	row, err := s.queries.GetFirstAvailableVolunteer(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Volunteer{}, false, nil
	}
	if err != nil {
		return Volunteer{}, false, fmt.Errorf("対応可能なボランティアの取得に失敗: %w", err)
	}
	return toVolunteer(row), true, nil
}

// SetAvailability はボランティアの対応可否を無条件に更新する。
func (s *Store) SetAvailability(ctx context.Context, id string, available bool) error {
	n, err := s.queries.SetVolunteerAvailability(ctx, registrydb.SetVolunteerAvailabilityParams{
		IsAvailable: boolToInt(available),
		ID:          id,
	})
	if err != nil {
		return fmt.Errorf("対応可否の更新に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimAvailability はボランティアが対応可能な場合に限り予約済みにする。
// 他のマッチング処理が先に確保していた場合はfalseを返す。
func (s *Store) ClaimAvailability(ctx context.Context, id string) (bool, error) {
	n, err := s.queries.ClaimVolunteer(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ボランティアの確保に失敗: %w", err)
	}
	return n == 1, nil
}

// Register はボランティアを新規登録する。IDは台帳が払い出す。
func (s *Store) Register(ctx context.Context, p RegisterParams) (Volunteer, error) {
	if p.UserID == "" {
		return Volunteer{}, errors.New("user_idは必須です")
	}

	if _, err := s.queries.GetVolunteerByUserID(ctx, p.UserID); err == nil {
		return Volunteer{}, ErrAlreadyRegistered
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Volunteer{}, fmt.Errorf("既存ボランティアの確認に失敗: %w", err)
	}

	id := uuid.New().String()
	if err := s.queries.CreateVolunteer(ctx, registrydb.CreateVolunteerParams{
		ID:          id,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IsAvailable: boolToInt(p.IsAvailable),
		PushToken:   toNullString(p.PushToken),
	}); err != nil {
		return Volunteer{}, fmt.Errorf("ボランティアの登録に失敗: %w", err)
	}

	return s.Get(ctx, id)
}

// Get はIDでボランティアを取得する。
func (s *Store) Get(ctx context.Context, id string) (Volunteer, error) {
	row, err := s.queries.GetVolunteerByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Volunteer{}, ErrNotFound
	}
	if err != nil {
		return Volunteer{}, fmt.Errorf("ボランティアの取得に失敗: %w", err)
	}
	return toVolunteer(row), nil
}

// GetByUserID は認証ユーザーIDでボランティアを取得する。
func (s *Store) GetByUserID(ctx context.Context, userID string) (Volunteer, error) {
	row, err := s.queries.GetVolunteerByUserID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Volunteer{}, ErrNotFound
	}
	if err != nil {
		return Volunteer{}, fmt.Errorf("ボランティアの取得に失敗: %w", err)
	}
	return toVolunteer(row), nil
}

// List は全ボランティアを登録順に返す。
func (s *Store) List(ctx context.Context) ([]Volunteer, error) {
	rows, err := s.queries.ListVolunteers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ボランティア一覧の取得に失敗: %w", err)
	}
	return lo.Map(rows, func(r registrydb.Volunteer, _ int) Volunteer {
		return toVolunteer(r)
	}), nil
}

// ListAvailableWithPushToken は対応可能でプッシュトークンが登録済みのボランティアを登録順に返す。
func (s *Store) ListAvailableWithPushToken(ctx context.Context) ([]Volunteer, error) {
	rows, err := s.queries.ListAvailableVolunteersWithPushToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("対応可能なボランティア一覧の取得に失敗: %w", err)
	}
	return lo.Map(rows, func(r registrydb.Volunteer, _ int) Volunteer {
		return toVolunteer(r)
	}), nil
}

// UpdatePushToken はプッシュトークンを更新する。空文字列はトークンの削除を意味する。
func (s *Store) UpdatePushToken(ctx context.Context, id, token string) error {
	n, err := s.queries.UpdateVolunteerPushToken(ctx, registrydb.UpdateVolunteerPushTokenParams{
		PushToken: toNullString(token),
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("プッシュトークンの更新に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete はボランティアを台帳から削除する。イベント履歴は残す。
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.queries.DeleteVolunteer(ctx, id)
	if err != nil {
		return fmt.Errorf("ボランティアの削除に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// toVolunteer はDB行をドメインのVolunteerに変換する。
func toVolunteer(r registrydb.Volunteer) Volunteer {
	return Volunteer{
		ID:          r.ID,
		UserID:      r.UserID,
		DisplayName: r.DisplayName,
		IsAvailable: r.IsAvailable != 0,
		PushToken:   r.PushToken.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
