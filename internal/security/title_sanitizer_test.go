package security

import "testing"

func TestTitleSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewTitleSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "Wireless Gaming Mouse", "Wireless Gaming Mouse"},
		{"HTMLタグの除去", "<b>Wireless</b> Gaming <i>Mouse</i>", "Wireless Gaming Mouse"},
		{"スクリプトタグの除去", "<script>alert(1)</script>USB Hub", "USB Hub"},
		{"imgタグの除去", `<img src=x onerror="alert(1)">USB Hub`, "USB Hub"},
		{"前後の空白除去", "  USB Hub  ", "USB Hub"},
		{"タグのみ", "<div></div>", ""},
		{"空文字", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTitleSanitizer_ImplementsInterface は実装がインターフェースを満たすことを検証する。
func TestTitleSanitizer_ImplementsInterface(t *testing.T) {
	var _ TitleSanitizerService = NewTitleSanitizer()
}
