// Package jobs はスクレイプジョブのライフサイクル管理とバックグラウンド実行を提供する。
// ジョブレジストリ、非同期ランナー、終端ジョブのクリーンアップを含む。
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hitoshi/dropscout/internal/catalog"
	"github.com/hitoshi/dropscout/internal/metrics"
	"github.com/hitoshi/dropscout/internal/model"
	"github.com/hitoshi/dropscout/internal/notify"
	"github.com/hitoshi/dropscout/internal/repository"
	"github.com/hitoshi/dropscout/internal/source"
	"github.com/hitoshi/dropscout/internal/validate"
)

const (
	// pageLimit は1ページあたりの候補取得件数。
	pageLimit = 20

	// progressInterval は進捗を報告する処理件数の間隔。
	progressInterval = 5

	// defaultMaxConcurrency はジョブ実行の最大並列数。
	defaultMaxConcurrency = 4
)

// permissiveRequest はジョブ実行用の緩いフィルターリクエストを構築する。
// ジョブはカタログ収集が目的であり、価格・配送の絞り込みは行わない。
// ページ番号をシードに混ぜることで、合成ソースのページごとの候補が変化する。
func permissiveRequest(job *model.ScrapeJob, page int) model.FilterRequest {
	return model.FilterRequest{
		Keywords:        job.Query,
		MinPrice:        0.01,
		MaxPrice:        1_000_000,
		Currency:        model.CurrencyUSD,
		MaxShippingDays: model.MaxShippingDaysCeiling,
		Limit:           pageLimit,
		Seed:            int64(page),
	}
}

// Runner はスクレイプジョブのバックグラウンド実行を行う。
// semaphoreパターンで最大並列数を制御し、1ジョブ=1ワーカースロットで実行する。
// ジョブ同士はジョブレジストリ以外の可変状態を共有しない。
type Runner struct {
	jobRepo    repository.JobRepository
	live       source.CandidateSource
	synthetic  source.CandidateSource
	validator  *validate.Validator
	catalog    *catalog.UpsertService
	dispatcher *notify.Dispatcher
	collector  metrics.MetricsCollector
	logger     *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // task_id → cancel
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewRunner(
	jobRepo repository.JobRepository,
	live, synthetic source.CandidateSource,
	validator *validate.Validator,
	catalogService *catalog.UpsertService,
	dispatcher *notify.Dispatcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Runner{
		jobRepo:    jobRepo,
		live:       live,
		synthetic:  synthetic,
		validator:  validator,
		catalog:    catalogService,
		dispatcher: dispatcher,
		collector:  collector,
		logger:     logger,
		sem:        make(chan struct{}, maxConcurrency),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Dispatch はジョブをバックグラウンド実行キューへ投入する。
// ワーカースロットが空くまでゴルーチン内でブロックする。
func (r *Runner) Dispatch(ctx context.Context, job *model.ScrapeJob) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			return
		}

		r.run(ctx, job)
	}()
}

// CancelTask はタスクハンドルを通じて実行中のジョブへキャンセルを通知する。
// ハンドルが見つからない場合（未開始または既に終了）はfalseを返す。
func (r *Runner) CancelTask(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.cancels[taskID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Wait は実行中の全ジョブの完了を待機する。シャットダウン時に使用する。
func (r *Runner) Wait() {
	r.wg.Wait()
}

// registerCancel はタスクハンドルとキャンセル関数を紐付ける。
func (r *Runner) registerCancel(taskID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[taskID] = cancel
}

// unregisterCancel はタスクハンドルの紐付けを解除する。
func (r *Runner) unregisterCancel(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, taskID)
}

// sourceFor はジョブのソースタグに対応する候補ソースを返す。
func (r *Runner) sourceFor(job *model.ScrapeJob) source.CandidateSource {
	if job.Source == source.TagSynthetic {
		return r.synthetic
	}
	return r.live
}

// run は1つのジョブを実行する。
// PENDING→STARTED遷移に失敗した場合（既に取り消し済み等）は何もしない。
// パニックはFAILUREとして回収され、プロセスには波及しない。
func (r *Runner) run(ctx context.Context, job *model.ScrapeJob) {
	started, err := r.jobRepo.MarkStarted(ctx, job.ID, time.Now())
	if err != nil {
		r.logger.Error("ジョブの開始遷移に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !started {
		// 開始前に取り消されたジョブ。終端遷移は取り消し側で記録済み。
		r.logger.Info("ジョブは開始前に取り消されていました",
			slog.String("job_id", job.ID),
		)
		r.notifyFresh(ctx, job.ID)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.registerCancel(job.TaskID, cancel)
	defer func() {
		cancel()
		r.unregisterCancel(job.TaskID)
	}()

	defer func() {
		if p := recover(); p != nil {
			errMsg := model.TruncateJobError(fmt.Sprintf("panic: %v", p))
			if _, markErr := r.jobRepo.MarkTerminal(ctx, job.ID, model.JobStatusFailure, errMsg, time.Now()); markErr != nil {
				r.logger.Error("パニック後の終端遷移に失敗しました",
					slog.String("job_id", job.ID),
					slog.String("error", markErr.Error()),
				)
			}
			r.logger.Error("ジョブ実行中にパニックが発生しました",
				slog.String("job_id", job.ID),
				slog.Any("panic", p),
			)
			r.notifyFresh(ctx, job.ID)
		}
	}()

	r.logger.Info("ジョブ実行を開始します",
		slog.String("job_id", job.ID),
		slog.String("query", job.Query),
		slog.String("source", job.Source),
		slog.Int("requested_pages", job.RequestedPages),
	)

	runErr := r.execute(jobCtx, job)

	switch {
	case jobCtx.Err() != nil:
		// 協調キャンセル。REVOKED遷移は取り消し側で記録済みだが、
		// 競合で未記録の場合に備えてここでも冪等に遷移を試みる。
		if _, markErr := r.jobRepo.MarkRevoked(ctx, job.ID, time.Now()); markErr != nil {
			r.logger.Error("キャンセル後の終端遷移に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
	case runErr != nil:
		errMsg := model.TruncateJobError(runErr.Error())
		if _, markErr := r.jobRepo.MarkTerminal(ctx, job.ID, model.JobStatusFailure, errMsg, time.Now()); markErr != nil {
			r.logger.Error("失敗ジョブの終端遷移に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
	default:
		if _, markErr := r.jobRepo.MarkTerminal(ctx, job.ID, model.JobStatusSuccess, "", time.Now()); markErr != nil {
			r.logger.Error("成功ジョブの終端遷移に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
	}

	r.notifyFresh(ctx, job.ID)
}

// execute はジョブの全ページを処理する。
// ページごとに候補を取得・検証し、受理済み商品をカタログへUPSERTする。
func (r *Runner) execute(jobCtx context.Context, job *model.ScrapeJob) error {
	src := r.sourceFor(job)
	category := catalog.CategoryForQuery(job.Query)
	total := job.RequestedPages * pageLimit

	var processed, returned, created int

	for page := 1; page <= job.RequestedPages; page++ {
		if jobCtx.Err() != nil {
			return jobCtx.Err()
		}

		req := permissiveRequest(job, page)
		outcome := src.Fetch(jobCtx, req, pageLimit)

		switch outcome.State {
		case source.StateFatal:
			return fmt.Errorf("候補取得が恒久的に失敗しました: %s", outcome.Reason)
		case source.StateTransient, source.StateEmpty:
			r.logger.Warn("ページの候補取得に失敗または0件でした",
				slog.String("job_id", job.ID),
				slog.Int("page", page),
				slog.String("reason", outcome.Reason),
			)
			// このページの処理予定分を処理済みとして進捗を進める
			processed += pageLimit
			r.reportProgress(jobCtx, job, processed, total, returned, created, true)
			continue
		}

		var accepted []model.AcceptedProduct
		for _, c := range outcome.Candidates {
			if jobCtx.Err() != nil {
				return jobCtx.Err()
			}

			processed++
			if validate.WellFormed(c) {
				product, _ := r.validator.Validate(jobCtx, req, c, false)
				if product != nil {
					accepted = append(accepted, *product)
					returned++
				}
			}

			if processed%progressInterval == 0 {
				r.reportProgress(jobCtx, job, processed, total, returned, created, false)
			}
		}

		// ページで取得できなかった残余分も処理済みに含める
		if shortfall := pageLimit - len(outcome.Candidates); shortfall > 0 {
			processed += shortfall
		}

		pageCreated, _, upsertErr := r.catalog.UpsertProducts(jobCtx, accepted, category, false)
		if upsertErr != nil {
			return fmt.Errorf("カタログUPSERTに失敗しました: %w", upsertErr)
		}
		created += pageCreated
		r.collector.RecordProductsUpserted(pageCreated)

		r.reportProgress(jobCtx, job, processed, total, returned, created, true)
	}

	return nil
}

// reportProgress は進捗をレジストリへ記録する。
// パーセンテージはround(processed/total×100, 2)で計算され、
// リポジトリ側のGREATESTにより単調増加が保証される。
func (r *Runner) reportProgress(ctx context.Context, job *model.ScrapeJob, processed, total, returned, created int, force bool) {
	if !force && processed%progressInterval != 0 {
		return
	}

	progress := ProgressPercent(processed, total)
	if err := r.jobRepo.UpdateProgress(ctx, job.ID, progress, returned, created); err != nil {
		r.logger.Warn("ジョブ進捗の記録に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// notifyFresh はジョブの最新状態を読み直して通知を配送する。
// 通知はベストエフォートであり、配送の成否はジョブの結果に影響しない。
func (r *Runner) notifyFresh(ctx context.Context, jobID string) {
	fresh, err := r.jobRepo.FindByID(ctx, jobID)
	if err != nil || fresh == nil {
		r.logger.Warn("通知用のジョブ再取得に失敗しました",
			slog.String("job_id", jobID),
		)
		return
	}

	r.collector.RecordJobFinished(string(fresh.Status))
	r.dispatcher.NotifyJobFinished(ctx, fresh)
}

// ProgressPercent は処理済み件数から進捗パーセンテージを計算する。
// totalが0以下の場合は100を返す。結果は小数第2位に丸められる。
func ProgressPercent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	percent := float64(processed) / float64(total) * 100
	if percent > 100 {
		percent = 100
	}
	return math.Round(percent*100) / 100
}
