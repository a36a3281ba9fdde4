package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/dropscout/internal/model"
)

func TestTelegramSink_Send(t *testing.T) {
	var gotPayload telegramPayload
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sink := NewTelegramSink(server.Client(), server.URL, "chat-123")
	if err := sink.Send(context.Background(), terminalJob(model.JobStatusSuccess)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotPayload.ChatID != "chat-123" {
		t.Errorf("chat_id = %q, want %q", gotPayload.ChatID, "chat-123")
	}
	if gotPayload.ParseMode != "HTML" {
		t.Errorf("parse_mode = %q, want HTML", gotPayload.ParseMode)
	}
	if !strings.Contains(gotPayload.Text, "usb hub") {
		t.Errorf("text = %q, サマリーを含むべき", gotPayload.Text)
	}
}

// TestTelegramSink_Send_NonOKStatus は200以外のステータスがエラーになることを検証する。
func TestTelegramSink_Send_NonOKStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"リダイレクトは失敗", http.StatusFound},
		{"クライアントエラー", http.StatusBadRequest},
		{"サーバーエラー", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := server.Client()
			client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			}

			sink := NewTelegramSink(client, server.URL, "chat-123")
			if err := sink.Send(context.Background(), terminalJob(model.JobStatusFailure)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTelegramSink_Send_ConnectionError(t *testing.T) {
	sink := NewTelegramSink(http.DefaultClient, "http://127.0.0.1:1/unreachable", "chat-123")
	if err := sink.Send(context.Background(), terminalJob(model.JobStatusSuccess)); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestTelegramSink_Name(t *testing.T) {
	sink := NewTelegramSink(http.DefaultClient, "http://example.com", "chat-123")
	if sink.Name() != "telegram" {
		t.Errorf("Name = %q, want telegram", sink.Name())
	}
}
