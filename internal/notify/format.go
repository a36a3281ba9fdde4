// Package notify はジョブ完了通知の整形と外部チャットへの配送を提供する。
package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/dropscout/internal/model"
)

// maxErrorHeadLength は通知に含めるエラーメッセージ先頭部の最大長。
const maxErrorHeadLength = 200

// statusEmojis は終了ステータスに対応する絵文字。
var statusEmojis = map[model.JobStatus]string{
	model.JobStatusSuccess: "✅",
	model.JobStatusFailure: "❌",
	model.JobStatusRevoked: "🚫",
}

// FormatJobSummary は終端状態のジョブから通知用サマリーを生成する。
// すべてのシンクはこの1つのテンプレートを共有し、
// シンクごとのペイロード形式の違いは各シンクが吸収する。
func FormatJobSummary(job *model.ScrapeJob) string {
	emoji := statusEmojis[job.Status]

	var b strings.Builder
	fmt.Fprintf(&b, "%s スクレイプジョブ %s\n", emoji, job.Status)
	fmt.Fprintf(&b, "クエリ: %s\n", job.Query)
	fmt.Fprintf(&b, "ソース: %s\n", job.Source)
	fmt.Fprintf(&b, "取得: %d件 / 新規登録: %d件\n", job.ReturnedItems, job.CreatedItems)

	if job.StartedAt != nil && job.FinishedAt != nil {
		duration := job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond)
		fmt.Fprintf(&b, "所要時間: %s\n", duration)
	}

	if job.Status == model.JobStatusFailure && job.Error != "" {
		head := job.Error
		if len(head) > maxErrorHeadLength {
			// ルーン境界で切り詰め、マルチバイト文字の分断を避ける
			cut := maxErrorHeadLength
			for cut > 0 && !utf8.RuneStart(head[cut]) {
				cut--
			}
			head = head[:cut] + "..."
		}
		fmt.Fprintf(&b, "エラー: %s\n", head)
	}

	return strings.TrimRight(b.String(), "\n")
}
