package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用したスクレイプジョブリポジトリ。
// ライフサイクル遷移はすべてステータス条件付きUPDATEで行い、
// 並行する遷移の競合はデータベース側で一方のみ成功に解決される。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const jobColumns = `id, task_id, query, source, requested_pages, returned_items,
	        created_items, progress, status, error, meta, started_at, finished_at, created_at`

// scanJob は1行をジョブ構造体へ読み取る。
func scanJob(scan func(dest ...interface{}) error) (*model.ScrapeJob, error) {
	job := &model.ScrapeJob{}
	var taskID, errMsg sql.NullString
	var metaRaw []byte
	var startedAt, finishedAt sql.NullTime

	err := scan(
		&job.ID, &taskID, &job.Query, &job.Source, &job.RequestedPages,
		&job.ReturnedItems, &job.CreatedItems, &job.Progress, &job.Status,
		&errMsg, &metaRaw, &startedAt, &finishedAt, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.TaskID = nullStringValue(taskID)
	job.Error = nullStringValue(errMsg)
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &job.Meta); err != nil {
			return nil, fmt.Errorf("ジョブメタデータのパースに失敗しました: %w", err)
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return job, nil
}

// Create はジョブをPENDING状態で作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.ScrapeJob) error {
	metaRaw, err := json.Marshal(job.Meta)
	if err != nil {
		return fmt.Errorf("ジョブメタデータのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO scrape_jobs (id, task_id, query, source, requested_pages,
		                          returned_items, created_items, progress, status,
		                          error, meta, started_at, finished_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, nullString(job.TaskID), job.Query, job.Source, job.RequestedPages,
		job.ReturnedItems, job.CreatedItems, job.Progress, job.Status,
		nullString(job.Error), metaRaw, job.StartedAt, job.FinishedAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.ScrapeJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE id = $1`, id)

	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ジョブの取得に失敗しました: %w", err)
	}
	return job, nil
}

// List は作成日時の降順でジョブ一覧を取得する。
func (r *PostgresJobRepo) List(ctx context.Context, limit, offset int) ([]*model.ScrapeJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+`
		 FROM scrape_jobs
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ジョブ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []*model.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("ジョブ行の読み取りに失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ジョブ一覧の走査に失敗しました: %w", err)
	}

	return jobs, nil
}

// Count はジョブ総数を返す。
func (r *PostgresJobRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scrape_jobs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ジョブ数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// MarkStarted はPENDINGのジョブをSTARTEDへ遷移させる。
// ジョブがPENDINGでない場合は何もせずfalseを返す。
func (r *PostgresJobRepo) MarkStarted(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scrape_jobs
		 SET status = $2, started_at = $3
		 WHERE id = $1 AND status = $4`,
		id, model.JobStatusStarted, startedAt, model.JobStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("ジョブの開始遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ジョブ開始遷移の結果確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress はSTARTED中のジョブの進捗を更新する。
// GREATESTにより保存値より小さい進捗では更新されず、単調増加が保証される。
func (r *PostgresJobRepo) UpdateProgress(ctx context.Context, id string, progress float64, returnedItems, createdItems int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scrape_jobs
		 SET progress = GREATEST(progress, $2),
		     returned_items = $3,
		     created_items = $4
		 WHERE id = $1 AND status = $5`,
		id, progress, returnedItems, createdItems, model.JobStatusStarted,
	)
	if err != nil {
		return fmt.Errorf("ジョブ進捗の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkTerminal はSTARTEDのジョブを終端状態へ遷移させる。
// ジョブが既に終端の場合は何もせずfalseを返す。
func (r *PostgresJobRepo) MarkTerminal(ctx context.Context, id string, status model.JobStatus, errMsg string, finishedAt time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("終端ステータスではありません: %s", status)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE scrape_jobs
		 SET status = $2, error = $3, progress = 100, finished_at = $4
		 WHERE id = $1 AND status IN ($5, $6)`,
		id, status, nullString(model.TruncateJobError(errMsg)), finishedAt,
		model.JobStatusPending, model.JobStatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("ジョブの終端遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ジョブ終端遷移の結果確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// MarkRevoked はPENDINGまたはSTARTEDのジョブをREVOKEDへ遷移させる。
// ジョブが既に終端の場合は何もせずfalseを返す。
func (r *PostgresJobRepo) MarkRevoked(ctx context.Context, id string, finishedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scrape_jobs
		 SET status = $2, progress = 100, finished_at = $3
		 WHERE id = $1 AND status IN ($4, $5)`,
		id, model.JobStatusRevoked, finishedAt,
		model.JobStatusPending, model.JobStatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("ジョブの取り消し遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ジョブ取り消し遷移の結果確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// DeleteTerminalBefore は指定日時より前に終了した終端ジョブを削除する。
func (r *PostgresJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scrape_jobs
		 WHERE status IN ($1, $2, $3) AND finished_at < $4`,
		model.JobStatusSuccess, model.JobStatusFailure, model.JobStatusRevoked, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("終端ジョブの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("終端ジョブ削除の結果確認に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
