package security

import (
	"strings"
	"testing"
	"time"
)

func TestProbeGuard_ValidateURL(t *testing.T) {
	guard := NewProbeGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"通常のHTTPS URL", "https://www.aliexpress.com/item/100.html", false},
		{"通常のHTTP URL", "http://example.com/page", false},
		{"パブリックIP", "http://93.184.216.34/", false},
		{"空URL", "", true},
		{"ftpスキーム", "ftp://example.com/file", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"javascriptスキーム", "javascript:alert(1)", true},
		{"ホストなし", "https://", true},
		{"localhost", "http://localhost/admin", true},
		{"localhost大文字", "http://LOCALHOST/admin", true},
		{"ループバックIP", "http://127.0.0.1:8080/", true},
		{"ループバック範囲", "http://127.8.8.8/", true},
		{"プライベートIP 10系", "http://10.0.0.5/", true},
		{"プライベートIP 172系", "http://172.16.0.1/", true},
		{"プライベートIP 192系", "http://192.168.1.10/", true},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"カレントネットワーク", "http://0.0.0.0/", true},
		{"IPv6ループバック", "http://[::1]/", true},
		{"IPv6リンクローカル", "http://[fe80::1]/", true},
		{"IPv6ユニークローカル", "http://[fd00::1]/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestProbeGuard_ValidateURL_BlockedIPErrorMessage(t *testing.T) {
	guard := NewProbeGuard()

	err := guard.ValidateURL("http://192.168.1.10/")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "192.168.1.10") {
		t.Errorf("error = %v, ブロックされたIPを含むべき", err)
	}
}

func TestProbeGuard_NewSafeClient(t *testing.T) {
	guard := NewProbeGuard()

	client := guard.NewSafeClient(3 * time.Second)
	if client == nil {
		t.Fatal("client should not be nil")
	}
	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
}

func TestIsBlockedIP_PublicAddresses(t *testing.T) {
	guard := NewProbeGuard()

	publics := []string{
		"http://8.8.8.8/",
		"http://1.1.1.1/",
		"http://203.0.113.10/",
	}
	for _, u := range publics {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, パブリックIPは許可されるべき", u, err)
		}
	}
}
