package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dropscout/internal/repository"
)

// CleanupJob は保持期間を超過した終端ジョブの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// 実行中（PENDING / STARTED）のジョブは削除対象にならない。
type CleanupJob struct {
	jobRepo       repository.JobRepository
	logger        *slog.Logger
	RetentionDays int // 終端ジョブの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(jobRepo repository.JobRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		jobRepo:       jobRepo,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した終端ジョブを削除する。
// finished_atがRetentionDays日前より古い終端ジョブをDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.jobRepo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("ジョブクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return err
	}

	duration := time.Since(start)
	j.logger.Info("ジョブクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("ジョブクリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ジョブクリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("ジョブクリーンアップの定期実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
