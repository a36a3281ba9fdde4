// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// ProductRepository は商品カタログの永続化インターフェース。
// URLを一意キーとし、冪等なアップサートを前提とする。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// FindByURL はURLで商品を検索する。見つからない場合はnilを返す。
	// URLはカタログの一意キー。
	FindByURL(ctx context.Context, url string) (*model.Product, error)

	// Create は商品を作成する。同一URLの行が既に存在する場合は何もせずfalseを返す。
	// 並行する同一URLの書き込みはON CONFLICT DO NOTHINGで1行に解決される。
	Create(ctx context.Context, product *model.Product) (bool, error)

	// Update は既存商品の非キー項目を上書き更新する。
	Update(ctx context.Context, product *model.Product) error

	// ListRecent は作成日時の降順で商品一覧を取得する。
	ListRecent(ctx context.Context, limit, offset int) ([]*model.Product, error)

	// Count はカタログの商品総数を返す。
	Count(ctx context.Context) (int, error)
}

// JobRepository はスクレイプジョブの永続化インターフェース。
// ライフサイクル遷移（PENDING→STARTED→終端）はガード付きUPDATEで保護され、
// 終端状態からの再遷移は決して成功しない。
type JobRepository interface {
	// Create はジョブをPENDING状態で作成する。
	Create(ctx context.Context, job *model.ScrapeJob) error

	// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ScrapeJob, error)

	// List は作成日時の降順でジョブ一覧を取得する。
	List(ctx context.Context, limit, offset int) ([]*model.ScrapeJob, error)

	// Count はジョブ総数を返す。
	Count(ctx context.Context) (int, error)

	// MarkStarted はPENDINGのジョブをSTARTEDへ遷移させ、started_atを記録する。
	// ジョブがPENDINGでない場合は何もせずfalseを返す。
	MarkStarted(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// UpdateProgress はSTARTED中のジョブの進捗を更新する。
	// progressは単調増加が保証される（保存値より小さい値では更新されない）。
	UpdateProgress(ctx context.Context, id string, progress float64, returnedItems, createdItems int) error

	// MarkTerminal はSTARTEDのジョブを終端状態（SUCCESSまたはFAILURE）へ遷移させる。
	// progress=100、finished_atを同時に記録する。
	// ジョブが既に終端の場合は何もせずfalseを返す。
	MarkTerminal(ctx context.Context, id string, status model.JobStatus, errMsg string, finishedAt time.Time) (bool, error)

	// MarkRevoked はPENDINGまたはSTARTEDのジョブをREVOKEDへ遷移させる。
	// ジョブが既に終端の場合は何もせずfalseを返す。
	MarkRevoked(ctx context.Context, id string, finishedAt time.Time) (bool, error)

	// DeleteTerminalBefore は指定日時より前に終了した終端ジョブを削除し、削除件数を返す。
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
