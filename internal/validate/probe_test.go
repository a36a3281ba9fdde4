package validate

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/dropscout/internal/security"
)

// TestHeadProber_BlockedURL_ReturnsZero はSSRFガードに弾かれるURLで0が返ることを検証する。
func TestHeadProber_BlockedURL_ReturnsZero(t *testing.T) {
	p := NewHeadProber(security.NewProbeGuard(), 1*time.Second)

	tests := []struct {
		name string
		url  string
	}{
		{"ループバック", "http://127.0.0.1:8080/item/1"},
		{"localhost", "http://localhost/item/1"},
		{"プライベートIP", "http://192.168.1.10/item/1"},
		{"非HTTPスキーム", "ftp://example.com/item/1"},
		{"不正なURL", "://not-a-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := p.Probe(context.Background(), tt.url); status != 0 {
				t.Errorf("Probe(%q) = %d, want 0", tt.url, status)
			}
		})
	}
}

// TestHeadProber_UnreachableHost_ReturnsZero は到達不能ホストで0が返ることを検証する。
func TestHeadProber_UnreachableHost_ReturnsZero(t *testing.T) {
	p := NewHeadProber(security.NewProbeGuard(), 500*time.Millisecond)

	// 予約済みの存在しないTLDを使用する（DNS解決に失敗する）
	if status := p.Probe(context.Background(), "https://nonexistent.invalid/item/1"); status != 0 {
		t.Errorf("Probe = %d, want 0", status)
	}
}

// TestNewHeadProber_DefaultTimeout はタイムアウト未指定時にデフォルトが適用されることを検証する。
func TestNewHeadProber_DefaultTimeout(t *testing.T) {
	p := NewHeadProber(security.NewProbeGuard(), 0)
	if p.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want %v", p.timeout, 3*time.Second)
	}
}
