// Package pipeline は商品フィルターパイプラインのオーケストレーションを提供する。
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dropscout/internal/metrics"
	"github.com/hitoshi/dropscout/internal/model"
	"github.com/hitoshi/dropscout/internal/source"
	"github.com/hitoshi/dropscout/internal/validate"
)

const (
	// minCandidateBudget / maxCandidateBudget は過剰取得バジェットのクランプ範囲。
	minCandidateBudget = 5
	maxCandidateBudget = 60

	// overFetchFactor は破棄率を見込んだ過剰取得の倍率。
	overFetchFactor = 3

	// fallbackFetchFactor は合成フォールバック時の取得倍率。
	fallbackFetchFactor = 2

	// defaultDeadline はパイプラインのソフトな実行時間上限。
	defaultDeadline = 30 * time.Second
)

// Config はパイプラインの動作設定。
type Config struct {
	// Deadline はソフトな実行時間上限。超過時は部分結果で完了する。
	Deadline time.Duration
	// ProbeLive はライブスクレイプ結果に対する到達性プローブの有効化。
	// スクレイプ時点の到達性で十分とみなし、デフォルトは無効。
	ProbeLive bool
	// ProbeSynthetic は合成結果に対する到達性プローブの有効化。
	ProbeSynthetic bool
}

// DefaultConfig はパイプラインのデフォルト設定を返す。
func DefaultConfig() Config {
	return Config{
		Deadline:       defaultDeadline,
		ProbeLive:      false,
		ProbeSynthetic: true,
	}
}

// Pipeline は候補ソース→検証→レスポンス組み立てを統括する。
// リクエストごとにステートレスであり、同時実行に安全。
type Pipeline struct {
	live      source.CandidateSource
	synthetic source.CandidateSource
	validator *validate.Validator
	cfg       Config
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// New はPipelineの新しいインスタンスを生成する。
func New(live, synthetic source.CandidateSource, validator *validate.Validator, cfg Config, collector metrics.MetricsCollector, logger *slog.Logger) *Pipeline {
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	return &Pipeline{
		live:      live,
		synthetic: synthetic,
		validator: validator,
		cfg:       cfg,
		collector: collector,
		logger:    logger,
	}
}

// CandidateBudget はlimitから候補取得バジェットを計算する。
// 過剰取得倍率を適用し、[5, 60]の範囲にクランプする。
func CandidateBudget(limit int) int {
	budget := limit * overFetchFactor
	if budget < minCandidateBudget {
		budget = minCandidateBudget
	}
	if budget > maxCandidateBudget {
		budget = maxCandidateBudget
	}
	return budget
}

// Run はフィルターリクエストを実行し、レスポンスを返す。
// 上流の失敗では決してエラーを返さない。ライブ取得が候補0件の場合は
// 合成ソースにフォールバックし、それでも候補が得られない場合は
// 空の結果と診断用の破棄記録を返す。
// リクエスト自体の妥当性検証は呼び出し境界の責務であり、ここでは行わない。
func (p *Pipeline) Run(ctx context.Context, req model.FilterRequest) model.FilterResponse {
	start := time.Now()
	deadline := start.Add(p.cfg.Deadline)

	// 実行時間上限はソース取得のHTTP呼び出しやストラテジー間の待機にも
	// 適用する。上限付きコンテキストで取得を打ち切り、部分結果で完了する。
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	budget := CandidateBudget(req.Limit)

	candidates, fallback, probeEnabled := p.gather(runCtx, req, budget)

	// JSONで常に配列として出力するため、非nilで初期化する
	results := make([]model.AcceptedProduct, 0, req.Limit)
	discarded := make([]model.DiscardRecord, 0)

	deadlineHit := false
	for _, c := range candidates {
		if len(results) >= req.Limit {
			break
		}
		if time.Now().After(deadline) {
			deadlineHit = true
			break
		}
		// 整形不十分な候補は破棄記録を残さず除外する
		if !validate.WellFormed(c) {
			continue
		}

		accepted, discard := p.validator.Validate(runCtx, req, c, probeEnabled)
		if accepted != nil {
			results = append(results, *accepted)
		} else {
			discarded = append(discarded, *discard)
			if probeEnabled {
				p.collector.RecordProbeStatus(discard.HTTPStatus)
			}
		}
	}

	if len(candidates) == 0 {
		discarded = append(discarded, model.DiscardRecord{
			CandidateURL: "",
			Reason:       "No candidates available from any source",
			HTTPStatus:   0,
			Note:         "live scrape and synthetic generation both yielded zero candidates",
		})
	}

	elapsed := time.Since(start)
	p.collector.RecordPipelineLatency(elapsed)
	p.collector.RecordCandidatesAccepted(len(results))
	p.collector.RecordCandidatesDiscarded(len(discarded))

	resp := model.FilterResponse{
		Requested: req,
		Results:   results,
		Discarded: discarded,
		Meta: model.FilterMeta{
			Returned:       len(results),
			DiscardedCount: len(discarded),
			TimeMS:         elapsed.Milliseconds(),
			Partial:        len(results) < req.Limit,
			Fallback:       fallback,
		},
	}

	if deadlineHit {
		p.logger.Warn("パイプラインが実行時間上限に達しました",
			slog.String("keywords", req.Keywords),
			slog.Int("returned", len(results)),
			slog.Duration("elapsed", elapsed),
		)
	}

	return resp
}

// gather はライブソースから候補を取得し、0件の場合は合成ソースへフォールバックする。
// ライブ結果と合成結果は1回の呼び出しで混在しない。
// 戻り値は候補列、フォールバック発動フラグ、プローブ有効化フラグ。
func (p *Pipeline) gather(ctx context.Context, req model.FilterRequest, budget int) ([]model.Candidate, bool, bool) {
	outcome := p.live.Fetch(ctx, req, budget)
	switch outcome.State {
	case source.StateOK:
		p.collector.RecordScrapeSuccess(p.live.Tag())
		return outcome.Candidates, false, p.cfg.ProbeLive
	case source.StateFatal:
		p.collector.RecordScrapeFailure(p.live.Tag(), outcome.Reason)
		p.logger.Error("ライブスクレイプが恒久的に失敗しました",
			slog.String("keywords", req.Keywords),
			slog.String("reason", outcome.Reason),
		)
	case source.StateTransient:
		p.collector.RecordScrapeFailure(p.live.Tag(), outcome.Reason)
		p.logger.Warn("ライブスクレイプが一時的に失敗しました",
			slog.String("keywords", req.Keywords),
			slog.String("reason", outcome.Reason),
		)
	case source.StateEmpty:
		p.logger.Info("ライブスクレイプは候補0件でした",
			slog.String("keywords", req.Keywords),
		)
	}

	// 合成フォールバック（フラグは合成候補が1件以上得られた場合のみ立てる）
	p.collector.RecordFallback()
	fallbackOutcome := p.synthetic.Fetch(ctx, req, req.Limit*fallbackFetchFactor)
	if fallbackOutcome.State != source.StateOK || len(fallbackOutcome.Candidates) == 0 {
		return nil, false, p.cfg.ProbeSynthetic
	}
	p.collector.RecordScrapeSuccess(p.synthetic.Tag())
	return fallbackOutcome.Candidates, true, p.cfg.ProbeSynthetic
}
