package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/dropscout/internal/model"
)

// TelegramSink はTelegram Bot APIのsendMessage互換エンドポイントへ通知を送るSink。
type TelegramSink struct {
	httpClient *http.Client
	endpoint   string
	chatID     string
}

// NewTelegramSink はTelegramSinkの新しいインスタンスを生成する。
func NewTelegramSink(httpClient *http.Client, endpoint, chatID string) *TelegramSink {
	return &TelegramSink{
		httpClient: httpClient,
		endpoint:   endpoint,
		chatID:     chatID,
	}
}

// Name はシンク名を返す。
func (s *TelegramSink) Name() string { return "telegram" }

// telegramPayload はsendMessageのリクエストボディ。
type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send はジョブサマリーをTelegramへ送信する。
// ステータス200のみを成功として扱う。
func (s *TelegramSink) Send(ctx context.Context, job *model.ScrapeJob) error {
	payload := telegramPayload{
		ChatID:    s.chatID,
		Text:      FormatJobSummary(job),
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Telegramペイロードのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Telegramリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Telegram Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Telegram Webhookがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}
