package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hitoshi/dropscout/internal/model"
)

// DiscordSink はDiscord Webhookへ通知を送るSink。
// 401を受け取った時点でプロセスの生存期間中は無効化され、
// 以降の送信は何もせず成功として扱われる。
type DiscordSink struct {
	httpClient *http.Client
	endpoint   string

	mu       sync.Mutex
	disabled bool
}

// NewDiscordSink はDiscordSinkの新しいインスタンスを生成する。
func NewDiscordSink(httpClient *http.Client, endpoint string) *DiscordSink {
	return &DiscordSink{
		httpClient: httpClient,
		endpoint:   endpoint,
	}
}

// Name はシンク名を返す。
func (s *DiscordSink) Name() string { return "discord" }

// Disabled はシンクが無効化されているかを返す。
func (s *DiscordSink) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// discordEmbed はDiscord Webhookのembedオブジェクト。
type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// discordPayload はDiscord Webhookのリクエストボディ。
type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// embedColors は終了ステータスに対応するembedの色。
var embedColors = map[model.JobStatus]int{
	model.JobStatusSuccess: 0x2ECC71,
	model.JobStatusFailure: 0xE74C3C,
	model.JobStatusRevoked: 0x95A5A6,
}

// Send はジョブサマリーをDiscordへ送信する。
// ステータス204のみを成功として扱い、401を受け取った場合は
// シンクを無効化してエラーを返す。
func (s *DiscordSink) Send(ctx context.Context, job *model.ScrapeJob) error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	payload := discordPayload{
		Content: fmt.Sprintf("スクレイプジョブ %s: %s", job.Status, job.Query),
		Embeds: []discordEmbed{
			{
				Title:       fmt.Sprintf("ジョブ %s", job.ID),
				Description: FormatJobSummary(job),
				Color:       embedColors[job.Status],
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Discordペイロードのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Discordリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Discord Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		s.mu.Lock()
		s.disabled = true
		s.mu.Unlock()
		return fmt.Errorf("Discord Webhookが401を返したためシンクを無効化しました")
	}

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("Discord Webhookがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}
