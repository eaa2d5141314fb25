package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nao1215/seeforme/internal/config"
	"github.com/nao1215/seeforme/internal/matcher"
	"github.com/nao1215/seeforme/internal/push"
	"github.com/nao1215/seeforme/internal/registry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP matching service",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg)

	store, err := registry.Open(ctx, cfg.DatabasePath, logger.With().Str("component", "registry").Logger())
	if err != nil {
		return fmt.Errorf("台帳の初期化に失敗: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("台帳のクローズに失敗")
		}
	}()

	m, err := newMatcher(ctx, cfg, store, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	server := matcher.NewServer(matcher.ServerConfig{
		Port:           cfg.Port,
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.Origins(),
		Gatherer:       prometheus.DefaultGatherer,
	}, store, m, logger)

	logger.Info().
		Str("push_gateway", cfg.PushGateway).
		Str("claim_mode", cfg.ClaimMode).
		Msg("マッチングサービスを起動します")
	return server.Run(ctx)
}

// newMatcher は設定に従ってプッシュゲートウェイとメトリクスを組み立て、Matcherを生成する。
func newMatcher(ctx context.Context, cfg *config.Config, store *registry.Store, reg prometheus.Registerer, logger zerolog.Logger) (*matcher.Matcher, error) {
	metrics, err := matcher.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("メトリクスの登録に失敗: %w", err)
	}

	gateway, err := newPushGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return matcher.New(store, gateway,
		matcher.WithDirectory(store),
		matcher.WithEventRecorder(store),
		matcher.WithMetrics(metrics),
		matcher.WithLogger(logger),
		matcher.WithClaimMode(matcher.ClaimMode(cfg.ClaimMode), cfg.MaxClaimAttempts),
	), nil
}

// newPushGateway は設定に従ってプッシュゲートウェイを生成する。
// fcmの場合はサービスアカウント鍵からアクセストークンを発行し、期限切れの前に自動で更新する。
func newPushGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (push.Gateway, error) {
	if cfg.PushGateway != config.PushGatewayFCM {
		return push.NewLogGateway(logger), nil
	}

	key, err := os.ReadFile(cfg.FCMCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("サービスアカウント鍵の読み込みに失敗: %w", err)
	}
	client, keyProjectID, err := push.NewFCMClient(ctx, cfg.FCMEndpoint, key, cfg.PushTimeout)
	if err != nil {
		return nil, err
	}

	projectID := lo.CoalesceOrEmpty(cfg.FCMProjectID, keyProjectID)
	if projectID == "" {
		return nil, errors.New("FirebaseプロジェクトIDが指定されていません（FCM_PROJECT_IDまたは鍵のproject_id）")
	}
	return push.NewFCMGateway(client, projectID, logger), nil
}

// openStore はCLIから台帳を開く。--dbが指定されていればそちらを優先する。
func openStore(ctx context.Context, dbPath string) (*registry.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	store, err := registry.Open(ctx, cfg.DatabasePath, config.NewLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("台帳の初期化に失敗: %w", err)
	}
	return store, nil
}
