package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dropscout/internal/metrics"
	"github.com/hitoshi/dropscout/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// フィルターパイプライン
	FilterService FilterServiceInterface

	// ジョブレジストリ
	JobRegistry JobRegistryInterface

	// 商品カタログ（読み取り）
	Products ProductReader

	// ヘルスチェック
	DB Pinger

	// メトリクス公開
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	filterHandler := NewFilterHandler(deps.FilterService)
	jobHandler := NewJobHandler(deps.JobRegistry)
	productHandler := NewProductHandler(deps.Products)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 運用ルート（レート制限なし） ---
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィルター実行（ライブスクレイプを伴うため専用レート制限を追加）
		r.With(deps.RateLimiter.FilterMiddleware()).
			Post("/api/products/filter", filterHandler.Filter)

		// カタログ閲覧（ジョブ実行で蓄積された商品の参照）
		r.Get("/api/products", productHandler.List)
		r.Get("/api/products/{id}", productHandler.Get)

		// スクレイプジョブ管理
		r.Route("/api/scrape/jobs", func(r chi.Router) {
			r.Post("/", jobHandler.Submit)
			r.Get("/", jobHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", jobHandler.Get)
				r.Post("/cancel", jobHandler.Cancel)
			})
		})
	})

	return r
}
