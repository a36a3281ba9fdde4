package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// Sink はジョブ完了通知の配送先インターフェース。
type Sink interface {
	// Name はログ出力用のシンク名を返す。
	Name() string
	// Send はジョブサマリーをシンクへ送信する。
	Send(ctx context.Context, job *model.ScrapeJob) error
}

// defaultSendTimeout は1シンクあたりの送信タイムアウト。
const defaultSendTimeout = 10 * time.Second

// Dispatcher はジョブの終端遷移ごとに設定済みの全シンクへ通知を配送する。
// 配送はベストエフォートであり、リトライは行わない。
// シンクの失敗は互いに独立しており、すべての例外は飲み込まれてログに残る。
type Dispatcher struct {
	sinks       []Sink
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(sinks []Sink, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		sinks:       sinks,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// NotifyJobFinished は終端状態のジョブを全シンクへ通知する。
// 1つのシンクの失敗は他のシンクの試行を妨げない。
// 通知の成否はジョブの結果セマンティクスに一切影響しない。
func (d *Dispatcher) NotifyJobFinished(ctx context.Context, job *model.ScrapeJob) {
	if job == nil || !job.Status.IsTerminal() {
		return
	}

	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := sink.Send(sendCtx, job)
		cancel()

		if err != nil {
			d.logger.Warn("通知シンクへの送信に失敗しました",
				slog.String("sink", sink.Name()),
				slog.String("job_id", job.ID),
				slog.String("status", string(job.Status)),
				slog.String("error", err.Error()),
			)
			continue
		}

		d.logger.Info("通知を送信しました",
			slog.String("sink", sink.Name()),
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
	}
}
