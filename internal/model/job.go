// Package model はドメインモデルを定義する。
package model

import (
	"time"
	"unicode/utf8"
)

// JobStatus はスクレイプジョブのライフサイクル状態を表す。
type JobStatus string

const (
	// JobStatusPending は投入済みでワーカー未着手の状態。
	JobStatusPending JobStatus = "PENDING"
	// JobStatusStarted はワーカーが実行中の状態。
	JobStatusStarted JobStatus = "STARTED"
	// JobStatusSuccess は正常完了した終端状態。
	JobStatusSuccess JobStatus = "SUCCESS"
	// JobStatusFailure は例外により失敗した終端状態。
	JobStatusFailure JobStatus = "FAILURE"
	// JobStatusRevoked はキャンセルされた終端状態。
	JobStatusRevoked JobStatus = "REVOKED"
)

// IsTerminal はステータスが終端状態（SUCCESS/FAILURE/REVOKED）かどうかを返す。
// 終端状態からの遷移は存在しない。
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailure, JobStatusRevoked:
		return true
	default:
		return false
	}
}

// MaxJobErrorLength はScrapeJob.Errorに保存されるエラーメッセージの最大長。
const MaxJobErrorLength = 2000

// ScrapeJob は長時間実行されるパイプライン実行の永続レコードを表す。
// ライフサイクル: PENDING → STARTED → SUCCESS | FAILURE | REVOKED。
type ScrapeJob struct {
	ID             string
	TaskID         string // ワーカーハンドル。未割り当ての場合は空。
	Query          string
	Source         string
	RequestedPages int
	ReturnedItems  int
	CreatedItems   int
	Progress       float64 // 0-100
	Status         JobStatus
	Error          string
	Meta           map[string]string
	StartedAt      *time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
}

// TruncateJobError はエラーメッセージをMaxJobErrorLength以内に切り詰める。
// マルチバイト文字の途中で切断すると不正なUTF-8となりDBへの保存に失敗するため、
// 切断位置はルーン境界まで戻す。
func TruncateJobError(msg string) string {
	if len(msg) <= MaxJobErrorLength {
		return msg
	}
	cut := MaxJobErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
