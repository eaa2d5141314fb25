package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nao1215/seeforme/internal/push"
	"github.com/nao1215/seeforme/internal/registry"
	"github.com/nao1215/seeforme/pkg/event"
	"github.com/nao1215/seeforme/pkg/middleware"
)

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string
	// JWTSecret はJWT検証に使う共有鍵。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。空の場合はCORSヘッダーを付与しない。
	AllowedOrigins []string
	// Gatherer は/metricsで公開するメトリクスの収集元。nilの場合は既定のレジストリ。
	Gatherer prometheus.Gatherer
}

// Server はマッチングサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg ServerConfig
	// store はボランティア台帳。
	store *registry.Store
	// matcher はマッチング処理。
	matcher *Matcher
	// validate はリクエストボディの検証器。
	validate *validator.Validate
	// logger はHTTPハンドラのロガー。
	logger zerolog.Logger
}

// NewServer は新しいマッチングサーバーを生成する。
func NewServer(cfg ServerConfig, store *registry.Store, m *Matcher, logger zerolog.Logger) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger = logger.With().Str("component", "http").Logger()

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(gin.Logger())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	s := &Server{
		router:   router,
		cfg:      cfg,
		store:    store,
		matcher:  m,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルにシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("HTTPサーバーを起動します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		// 支援依頼のマッチング（callable）
		api.POST("/match", s.handleMatch())

		// ボランティアの一斉呼び出しと個別呼び出し
		calls := api.Group("/calls")
		calls.Use(middleware.RequireAccountType(middleware.AccountTypeBlind, middleware.AccountTypeAdmin))
		{
			calls.POST("/broadcast", s.handleBroadcast())
			calls.POST("/:volunteerId", s.handleCallVolunteer())
		}

		volunteers := api.Group("/volunteers")
		volunteers.Use(middleware.RequireAccountType(middleware.AccountTypeVolunteer, middleware.AccountTypeAdmin))
		{
			volunteers.POST("", s.handleRegister())
			volunteers.GET("", middleware.RequireAccountType(middleware.AccountTypeAdmin), s.handleList())
			volunteers.GET("/me", s.handleGetMine())
			volunteers.GET("/:id", s.handleGet())
			volunteers.PUT("/:id/push-token", s.handleUpdatePushToken())
			volunteers.PUT("/:id/availability", s.handleSetAvailability())
			volunteers.GET("/:id/events", s.handleListEvents())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "matcher"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "matcher"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
}

// matchRequest はマッチングAPIのリクエストボディ。
// callable形式の {"data": {...}} と、素の {"meetingId": ...} の両方を受け付ける。
type matchRequest struct {
	Data      *matchParams `json:"data"`
	MeetingID string       `json:"meetingId"`
}

type matchParams struct {
	MeetingID string `json:"meetingId"`
}

// meetingID はリクエストからmeetingIdを取り出す。
func (r matchRequest) meetingID() string {
	if r.Data != nil {
		return r.Data.MeetingID
	}
	return r.MeetingID
}

// callableError はcallable形式のエラー本体。
type callableError struct {
	Status  Kind   `json:"status"`
	Message string `json:"message"`
}

// handleMatch は支援依頼をボランティアに割り当てるハンドラ。
func (s *Server) handleMatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req matchRequest
		if !s.bindCallable(c, &req) {
			return
		}

		if _, err := s.matcher.Match(c.Request.Context(), req.meetingID()); err != nil {
			writeCallableError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": gin.H{"success": true}})
	}
}

// broadcastRequest は一斉呼び出しのリクエストボディ。
// VolunteerIDsを省略すると対応可能なボランティア全員が宛先になる。
type broadcastRequest struct {
	MeetingID    string   `json:"meetingId" validate:"max=256"`
	VolunteerIDs []string `json:"volunteerIds" validate:"max=500,dive,required"`
}

type callFailureResponse struct {
	VolunteerID string `json:"volunteerId"`
	Reason      string `json:"reason"`
}

// handleBroadcast はボランティアに一斉に呼びかけるハンドラ。
func (s *Server) handleBroadcast() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req broadcastRequest
		if !s.bindCallable(c, &req) {
			return
		}

		res, err := s.matcher.Broadcast(c.Request.Context(), req.MeetingID, req.VolunteerIDs)
		if err != nil {
			writeCallableError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": gin.H{
			"success":      true,
			"successCount": res.SuccessCount,
			"failureCount": res.FailureCount,
			"failures": lo.Map(res.Failures, func(f CallFailure, _ int) callFailureResponse {
				return callFailureResponse{VolunteerID: f.VolunteerID, Reason: f.Reason}
			}),
		}})
	}
}

// callVolunteerRequest は個別呼び出しのリクエストボディ。
// CallerNameを省略するとトークンのメールアドレス、それも無ければユーザーIDを表示名にする。
type callVolunteerRequest struct {
	MeetingID  string `json:"meetingId" validate:"max=256"`
	CallerName string `json:"callerName" validate:"max=100"`
}

// handleCallVolunteer は特定のボランティアにビデオ通話の着信通知を送るハンドラ。
func (s *Server) handleCallVolunteer() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req callVolunteerRequest
		if !s.bindCallable(c, &req) {
			return
		}

		userID := middleware.GetUserID(c)
		email := middleware.GetEmail(c)
		caller := push.Caller{
			ID:    userID,
			Name:  lo.CoalesceOrEmpty(req.CallerName, email, userID),
			Email: email,
		}

		messageID, err := s.matcher.CallVolunteer(c.Request.Context(), c.Param("volunteerId"), caller, req.MeetingID)
		if err != nil {
			writeCallableError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": gin.H{"success": true, "messageId": messageID}})
	}
}

// bindCallable はリクエストボディをデコードして検証する。
// 失敗時はcallable形式のINVALID_ARGUMENTを返しfalseを返す。
func (s *Server) bindCallable(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeCallableError(c, invalidArgument("リクエストボディが不正です"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeCallableError(c, invalidArgument(fmt.Sprintf("入力値が不正です: %v", err)))
		return false
	}
	return true
}

// writeCallableError はエラーの種類に応じたステータスでcallable形式のエラーを返す。
// 内部エラーの詳細は呼び出し元に返さない。
func writeCallableError(c *gin.Context, err error) {
	kind := KindOf(err)
	message := "内部エラーが発生しました"
	var me *Error
	if errors.As(err, &me) {
		message = me.Message
	}

	status := http.StatusInternalServerError
	switch kind {
	case KindInvalidArgument, KindFailedPrecondition:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{"error": callableError{Status: kind, Message: message}})
}

// volunteerResponse はボランティアのJSONレスポンス構造。
type volunteerResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	IsAvailable  bool   `json:"is_available"`
	HasPushToken bool   `json:"has_push_token"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// toVolunteerResponse はボランティアをJSONレスポンスに変換する。
// プッシュトークンそのものは返さない。
func toVolunteerResponse(v registry.Volunteer) volunteerResponse {
	return volunteerResponse{
		ID:           v.ID,
		UserID:       v.UserID,
		DisplayName:  v.DisplayName,
		IsAvailable:  v.IsAvailable,
		HasPushToken: v.HasPushToken(),
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    v.UpdatedAt.Format(time.RFC3339),
	}
}

// eventResponse はイベントのJSONレスポンス構造。
type eventResponse struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	CreatedAt string          `json:"created_at"`
}

// registerRequest はボランティア登録のリクエストボディ。
type registerRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	PushToken   string `json:"push_token" validate:"max=4096"`
	IsAvailable bool   `json:"is_available"`
}

// pushTokenRequest はプッシュトークン更新のリクエストボディ。空文字列は削除を意味する。
type pushTokenRequest struct {
	PushToken string `json:"push_token" validate:"max=4096"`
}

// availabilityRequest は対応可否更新のリクエストボディ。
type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

// bindJSON はリクエストボディをデコードして検証する。失敗時は400を返しfalseを返す。
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("入力値が不正です: %v", err)})
		return false
	}
	return true
}

// handleRegister は認証済みユーザーをボランティアとして登録するハンドラ。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req registerRequest
		if !s.bindJSON(c, &req) {
			return
		}

		v, err := s.store.Register(c.Request.Context(), registry.RegisterParams{
			UserID:      userID,
			DisplayName: req.DisplayName,
			PushToken:   req.PushToken,
			IsAvailable: req.IsAvailable,
		})
		if errors.Is(err, registry.ErrAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": "既にボランティア登録されています"})
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("ボランティア登録エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ボランティアの登録に失敗しました"})
			return
		}

		s.appendEvent(c, v.ID, event.TypeVolunteerRegistered, event.VolunteerRegisteredData{
			UserID:       v.UserID,
			DisplayName:  v.DisplayName,
			HasPushToken: v.HasPushToken(),
		})

		c.JSON(http.StatusCreated, toVolunteerResponse(v))
	}
}

// handleList は全ボランティアを返すハンドラ。管理者のみ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		volunteers, err := s.store.List(c.Request.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("ボランティア一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ボランティア一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, lo.Map(volunteers, func(v registry.Volunteer, _ int) volunteerResponse {
			return toVolunteerResponse(v)
		}))
	}
}

// handleGetMine は認証済みユーザー自身のボランティア情報を返すハンドラ。
func (s *Server) handleGetMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.store.GetByUserID(c.Request.Context(), middleware.GetUserID(c))
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ボランティア登録されていません"})
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("ボランティア取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ボランティアの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, toVolunteerResponse(v))
	}
}

// handleGet はボランティアを1件返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := s.loadOwned(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toVolunteerResponse(v))
	}
}

// handleUpdatePushToken は端末のプッシュトークンを登録・削除するハンドラ。
func (s *Server) handleUpdatePushToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := s.loadOwned(c)
		if !ok {
			return
		}

		var req pushTokenRequest
		if !s.bindJSON(c, &req) {
			return
		}

		if err := s.store.UpdatePushToken(c.Request.Context(), v.ID, req.PushToken); err != nil {
			s.logger.Error().Err(err).Str("volunteer_id", v.ID).Msg("プッシュトークン更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プッシュトークンの更新に失敗しました"})
			return
		}

		s.appendEvent(c, v.ID, event.TypePushTokenUpdated, event.PushTokenUpdatedData{
			UserID:  v.UserID,
			Cleared: req.PushToken == "",
		})

		c.JSON(http.StatusOK, gin.H{"message": "プッシュトークンを更新しました"})
	}
}

// handleSetAvailability はボランティア自身が対応可否を切り替えるハンドラ。
func (s *Server) handleSetAvailability() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := s.loadOwned(c)
		if !ok {
			return
		}

		var req availabilityRequest
		if !s.bindJSON(c, &req) {
			return
		}

		if err := s.store.SetAvailability(c.Request.Context(), v.ID, *req.IsAvailable); err != nil {
			s.logger.Error().Err(err).Str("volunteer_id", v.ID).Msg("対応可否更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "対応可否の更新に失敗しました"})
			return
		}

		s.appendEvent(c, v.ID, event.TypeAvailabilityChanged, event.AvailabilityChangedData{
			UserID:      v.UserID,
			IsAvailable: *req.IsAvailable,
		})

		v.IsAvailable = *req.IsAvailable
		c.JSON(http.StatusOK, toVolunteerResponse(v))
	}
}

// handleListEvents はボランティアのイベント履歴を返すハンドラ。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := s.loadOwned(c)
		if !ok {
			return
		}

		events, err := s.store.ListEvents(c.Request.Context(), v.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("volunteer_id", v.ID).Msg("イベント一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベント一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, lo.Map(events, func(e event.Event, _ int) eventResponse {
			return eventResponse{
				ID:        e.ID,
				EventType: string(e.EventType),
				Data:      e.Data,
				Version:   e.Version,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
			}
		}))
	}
}

// loadOwned はパスのIDのボランティアを取得し、本人または管理者であることを確認する。
// 失敗時はレスポンスを書き込みfalseを返す。
func (s *Server) loadOwned(c *gin.Context) (registry.Volunteer, bool) {
	v, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ボランティアが見つかりません"})
		return registry.Volunteer{}, false
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("ボランティア取得エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ボランティアの取得に失敗しました"})
		return registry.Volunteer{}, false
	}

	if v.UserID != middleware.GetUserID(c) && middleware.GetAccountType(c) != middleware.AccountTypeAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "このボランティアを操作する権限がありません"})
		return registry.Volunteer{}, false
	}
	return v, true
}

// appendEvent はボランティアのイベントを記録する。失敗してもレスポンスには影響させない。
func (s *Server) appendEvent(c *gin.Context, volunteerID string, eventType event.Type, data any) {
	if _, err := s.store.AppendEvent(c.Request.Context(), volunteerID, event.AggregateTypeVolunteer, eventType, data); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("イベントの記録に失敗しました")
	}
}
