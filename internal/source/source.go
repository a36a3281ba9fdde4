// Package source はフィルタパイプラインへの商品候補の供給を提供する。
// ライブスクレイパーと合成ジェネレーターの2種類のソースを含む。
package source

import (
	"context"

	"github.com/hitoshi/dropscout/internal/model"
)

// State はソース取得結果の分類を表す。
// パイプラインは例外ではなくこのタグに基づいてエスカレーションを判断する。
type State int

const (
	// StateOK は1件以上の候補が得られた状態。
	StateOK State = iota
	// StateEmpty は全戦略が成功したが候補が0件だった状態。
	StateEmpty
	// StateTransient は一時的な失敗（タイムアウト、5xx等）。
	StateTransient
	// StateFatal は恒久的な失敗（設定不正等）。
	StateFatal
)

// Outcome はソース取得の結果を表す直和型。
// Candidatesの順序はソースの走査順であり、パイプラインはこれを保持する。
type Outcome struct {
	State      State
	Candidates []model.Candidate
	Reason     string
}

// Ok は候補リストを持つ成功Outcomeを生成する。
// 候補が空の場合はEmptyに分類される。
func Ok(candidates []model.Candidate) Outcome {
	if len(candidates) == 0 {
		return Outcome{State: StateEmpty}
	}
	return Outcome{State: StateOK, Candidates: candidates}
}

// Empty は候補なしのOutcomeを生成する。
func Empty(reason string) Outcome {
	return Outcome{State: StateEmpty, Reason: reason}
}

// Transient は一時的失敗のOutcomeを生成する。
func Transient(reason string) Outcome {
	return Outcome{State: StateTransient, Reason: reason}
}

// Fatal は恒久的失敗のOutcomeを生成する。
func Fatal(reason string) Outcome {
	return Outcome{State: StateFatal, Reason: reason}
}

// CandidateSource は商品候補を供給するソースのインターフェース。
// ソースはフィルタリングを行わず、候補の生成のみを担当する。
type CandidateSource interface {
	// Fetch はリクエストに対して最大maxCandidates件の候補を取得する。
	// 部分的な結果は失敗とせず、得られた候補をそのまま返す。
	Fetch(ctx context.Context, req model.FilterRequest, maxCandidates int) Outcome

	// Platform はマーケットプレイスのプラットフォームタグを返す。
	Platform() string

	// Tag は候補に付与されるソースタグ（"scraped"/"synthetic"）を返す。
	Tag() string
}
