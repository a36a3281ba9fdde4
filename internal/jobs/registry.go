package jobs

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/dropscout/internal/model"
	"github.com/hitoshi/dropscout/internal/repository"
	"github.com/hitoshi/dropscout/internal/source"
)

const (
	// maxRequestedPages は1ジョブで要求できる最大ページ数。
	maxRequestedPages = 10

	// defaultListLimit はジョブ一覧のデフォルト取得件数。
	defaultListLimit = 20
)

// Registry はスクレイプジョブの投入・観測・取り消しを提供する。
// 永続化はJobRepositoryへ、実行はRunnerへ委譲する。
type Registry struct {
	jobRepo repository.JobRepository
	runner  *Runner
	logger  *slog.Logger
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
func NewRegistry(jobRepo repository.JobRepository, runner *Runner, logger *slog.Logger) *Registry {
	return &Registry{
		jobRepo: jobRepo,
		runner:  runner,
		logger:  logger,
	}
}

// Submit は新しいスクレイプジョブをPENDING状態で作成し、バックグラウンド実行へ投入する。
// queryが空の場合はエラー。sourceが空の場合は"scraped"、pagesが0以下の場合は1を使用する。
func (g *Registry) Submit(ctx context.Context, query, sourceTag string, pages int) (*model.ScrapeJob, *model.APIError) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewMissingQueryError()
	}

	if sourceTag == "" {
		sourceTag = source.TagScraped
	}
	if sourceTag != source.TagScraped && sourceTag != source.TagSynthetic {
		return nil, model.NewInvalidJobSourceError(sourceTag)
	}

	if pages <= 0 {
		pages = 1
	}
	if pages > maxRequestedPages {
		pages = maxRequestedPages
	}

	now := time.Now()
	job := &model.ScrapeJob{
		ID:             uuid.New().String(),
		TaskID:         uuid.New().String(),
		Query:          query,
		Source:         sourceTag,
		RequestedPages: pages,
		Status:         model.JobStatusPending,
		Meta: map[string]string{
			"requested_pages": strconv.Itoa(pages),
			"submitted_at":    now.UTC().Format(time.RFC3339),
		},
		CreatedAt: now,
	}

	if err := g.jobRepo.Create(ctx, job); err != nil {
		g.logger.Error("ジョブの作成に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}

	g.runner.Dispatch(context.WithoutCancel(ctx), job)

	g.logger.Info("ジョブを投入しました",
		slog.String("job_id", job.ID),
		slog.String("task_id", job.TaskID),
		slog.String("query", query),
		slog.String("source", sourceTag),
		slog.Int("pages", pages),
	)

	return job, nil
}

// Get は指定IDのジョブを取得する。見つからない場合はJOB_NOT_FOUNDエラーを返す。
func (g *Registry) Get(ctx context.Context, id string) (*model.ScrapeJob, *model.APIError) {
	job, err := g.jobRepo.FindByID(ctx, id)
	if err != nil {
		g.logger.Error("ジョブの取得に失敗しました",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	return job, nil
}

// List はジョブ一覧と総数を取得する。limitが0以下の場合は20を使用する。
func (g *Registry) List(ctx context.Context, limit, offset int) ([]*model.ScrapeJob, int, *model.APIError) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := g.jobRepo.List(ctx, limit, offset)
	if err != nil {
		g.logger.Error("ジョブ一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, 0, model.NewInternalError()
	}

	count, err := g.jobRepo.Count(ctx)
	if err != nil {
		g.logger.Error("ジョブ数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, 0, model.NewInternalError()
	}

	return jobs, count, nil
}

// Cancel は指定IDのジョブを取り消す。
// 実行中の場合はタスクハンドル経由でワーカーへ協調キャンセルを通知し、
// ハンドルが見つからない場合はローカルでREVOKEDへ遷移させる。
// 終端状態のジョブの取り消しは呼び出し側のエラーとして扱う。
func (g *Registry) Cancel(ctx context.Context, id string) (*model.ScrapeJob, *model.APIError) {
	job, err := g.jobRepo.FindByID(ctx, id)
	if err != nil {
		g.logger.Error("取り消し対象ジョブの取得に失敗しました",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	if job.Status.IsTerminal() {
		return nil, model.NewJobNotCancelableError(job.Status)
	}

	// 実行中のワーカーへ協調キャンセルを通知（未開始の場合は何もしない）
	signaled := g.runner.CancelTask(job.TaskID)

	revoked, err := g.jobRepo.MarkRevoked(ctx, id, time.Now())
	if err != nil {
		g.logger.Error("ジョブの取り消し遷移に失敗しました",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRevokeFailedError(err.Error())
	}
	if !revoked {
		// 取り消しと終端遷移が競合し、終端が先に勝った
		fresh, findErr := g.jobRepo.FindByID(ctx, id)
		if findErr == nil && fresh != nil {
			return nil, model.NewJobNotCancelableError(fresh.Status)
		}
		return nil, model.NewRevokeFailedError("ジョブは既に終端状態です")
	}

	g.logger.Info("ジョブを取り消しました",
		slog.String("job_id", id),
		slog.Bool("worker_signaled", signaled),
	)

	fresh, err := g.jobRepo.FindByID(ctx, id)
	if err != nil || fresh == nil {
		return nil, model.NewInternalError()
	}
	return fresh, nil
}
