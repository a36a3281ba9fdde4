// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/dropscout/internal/catalog"
	"github.com/hitoshi/dropscout/internal/config"
	"github.com/hitoshi/dropscout/internal/database"
	"github.com/hitoshi/dropscout/internal/handler"
	"github.com/hitoshi/dropscout/internal/jobs"
	"github.com/hitoshi/dropscout/internal/logger"
	"github.com/hitoshi/dropscout/internal/metrics"
	"github.com/hitoshi/dropscout/internal/middleware"
	"github.com/hitoshi/dropscout/internal/notify"
	"github.com/hitoshi/dropscout/internal/pipeline"
	"github.com/hitoshi/dropscout/internal/repository"
	"github.com/hitoshi/dropscout/internal/security"
	"github.com/hitoshi/dropscout/internal/source"
	"github.com/hitoshi/dropscout/internal/validate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildSinks は設定済みの通知シンクを構築する。
// エンドポイントが未設定のシンクは構築されない。
func buildSinks(cfg *config.Config) []notify.Sink {
	webhookClient := &http.Client{Timeout: cfg.WebhookTimeout}

	var sinks []notify.Sink
	if cfg.TelegramWebhookURL != "" {
		sinks = append(sinks, notify.NewTelegramSink(webhookClient, cfg.TelegramWebhookURL, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordSink(webhookClient, cfg.DiscordWebhookURL))
	}
	return sinks
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ジョブランナーはAPIサーバーと同一プロセスで動作する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)

	// 3. セキュリティサービスの初期化
	probeGuard := security.NewProbeGuard()
	sanitizer := security.NewTitleSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 候補ソースとバリデーターの初期化
	live := source.NewLiveScraper(source.ScraperConfig{
		BaseURL:     cfg.MarketplaceBaseURL,
		Timeout:     cfg.ScrapeTimeout,
		MaxBodySize: cfg.ScrapeMaxSize,
	}, slog.Default())
	synthetic := source.NewSyntheticGenerator(source.PlatformAliExpress)

	prober := validate.NewHeadProber(probeGuard, cfg.ProbeTimeout)
	validator := validate.NewValidator(prober, source.PlatformAliExpress)

	// 6. フィルターパイプラインの初期化
	pipe := pipeline.New(live, synthetic, validator, pipeline.Config{
		Deadline:       cfg.PipelineDeadline,
		ProbeLive:      cfg.ProbeLive,
		ProbeSynthetic: cfg.ProbeSynthetic,
	}, collector, slog.Default())

	// 7. 通知ディスパッチャーとジョブサブシステムの初期化
	dispatcher := notify.NewDispatcher(buildSinks(cfg), cfg.WebhookTimeout, slog.Default())
	catalogService := catalog.NewUpsertService(productRepo, sanitizer)
	runner := jobs.NewRunner(
		jobRepo, live, synthetic, validator, catalogService,
		dispatcher, collector, slog.Default(), cfg.JobMaxConcurrent,
	)
	jobRegistry := jobs.NewRegistry(jobRepo, runner, slog.Default())

	// 8. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレートはreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.FilterRate = rate.Limit(float64(cfg.RateLimitFilter) / 60.0)
	rateLimiterCfg.FilterBurst = cfg.RateLimitFilter

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		FilterService:     pipe,
		JobRegistry:       jobRegistry,
		Products:          productRepo,
		DB:                db,
		Gatherer:          registry,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 実行中のジョブの完了を待つ
	slog.Info("waiting for running jobs...")
	runner.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、終端ジョブのクリーンアップスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	jobRepo := repository.NewPostgresJobRepo(db)
	cleanupJob := jobs.NewCleanupJob(jobRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.JobRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", cfg.JobRetentionDays),
	)

	// 起動直後に1回実行
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	// クリーンアップスケジューラをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
