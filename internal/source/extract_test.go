package source

import (
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) failed: %v", raw, err)
	}
	return u
}

func TestNormalizeURL(t *testing.T) {
	base := mustParseURL(t, "https://www.aliexpress.com/wholesale?SearchText=hub")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"絶対URL", "https://www.aliexpress.com/item/100.html", "https://www.aliexpress.com/item/100.html"},
		{"スキーム相対URL", "//www.aliexpress.com/item/200.html", "https://www.aliexpress.com/item/200.html"},
		{"パス相対URL", "/item/300.html", "https://www.aliexpress.com/item/300.html"},
		{"前後の空白", "  https://www.aliexpress.com/item/400.html  ", "https://www.aliexpress.com/item/400.html"},
		{"空文字", "", ""},
		{"非HTTPスキーム", "javascript:void(0)", ""},
		{"ホストなし", "https://", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.raw, base); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestNormalizeURL_RelativeWithoutBase はベースなしの相対URLが空文字になることを検証する。
func TestNormalizeURL_RelativeWithoutBase(t *testing.T) {
	if got := NormalizeURL("/item/1.html", nil); got != "" {
		t.Errorf("NormalizeURL = %q, want empty", got)
	}
}

func TestParsePriceToken(t *testing.T) {
	tests := []struct {
		token  string
		want   float64
		wantOK bool
	}{
		{"$9.99", 9.99, true},
		{"US $12.50", 12.50, true},
		{"€15,99", 15.99, true},
		{"1,234.56", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"£3.20", 3.20, true},
		{"$1.99 - 5.99", 1.99, true}, // レンジ表記は下限
		{"1,500", 1500, true},        // カンマは桁区切り
		{"", 0, false},
		{"$0", 0, false},        // 0以下は不可
		{"$99999", 0, false},    // 上限超過
		{"free", 0, false},      // 数値でない
		{"$-5.00", 0, false},    // 負値
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParsePriceToken(tt.token)
			if ok != tt.wantOK {
				t.Fatalf("ParsePriceToken(%q) ok = %v, want %v", tt.token, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePriceToken(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"内部空白の折りたたみ", "USB  Hub\n  4 Port   Adapter", "USB Hub 4 Port Adapter"},
		{"短すぎるタイトル", "USB Hub", ""},
		{"空文字", "", ""},
		{"前後の空白除去", "  Wireless Gaming Mouse  ", "Wireless Gaming Mouse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.raw); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDedupCandidates(t *testing.T) {
	now := time.Now()
	candidates := []model.Candidate{
		{URL: "https://a.example.com/1", Title: "Wireless Gaming Mouse", Price: 9.99, CapturedAt: now},
		{URL: "https://a.example.com/1", Title: "Different Title Entirely", Price: 8.99, CapturedAt: now}, // URL重複
		{URL: "https://a.example.com/2", Title: "WIRELESS GAMING MOUSE", Price: 7.99, CapturedAt: now},    // タイトル重複（大文字小文字）
		{URL: "https://a.example.com/3", Title: "Mechanical Keyboard RGB", Price: 25.00, CapturedAt: now},
	}

	got := DedupCandidates(candidates)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].URL != "https://a.example.com/1" {
		t.Errorf("first = %q, order should be preserved", got[0].URL)
	}
	if got[1].URL != "https://a.example.com/3" {
		t.Errorf("second = %q", got[1].URL)
	}
}

func TestExtractCandidatesFromJSON(t *testing.T) {
	base := mustParseURL(t, "https://www.aliexpress.com/wholesale")
	now := time.Now()

	blob := []byte(`{
		"mods": {
			"itemList": {
				"content": [
					{
						"title": "Wireless Gaming Mouse RGB Backlit",
						"productDetailUrl": "//www.aliexpress.com/item/1005001.html",
						"salePrice": {"minPrice": 12.99},
						"imageUrl": "//ae01.alicdn.com/kf/a.jpg",
						"shippingDays": 14,
						"averageStar": "4.7"
					},
					{
						"title": "No price entry should be dropped",
						"productDetailUrl": "//www.aliexpress.com/item/1005002.html"
					}
				]
			}
		}
	}`)

	got := extractCandidatesFromJSON(blob, base, model.CurrencyUSD, TagScraped, now)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	c := got[0]
	if c.URL != "https://www.aliexpress.com/item/1005001.html" {
		t.Errorf("URL = %q", c.URL)
	}
	if c.Price != 12.99 {
		t.Errorf("Price = %v, want 12.99", c.Price)
	}
	if c.ImageURL != "https://ae01.alicdn.com/kf/a.jpg" {
		t.Errorf("ImageURL = %q", c.ImageURL)
	}
	if c.ShippingDays == nil || *c.ShippingDays != 14 {
		t.Errorf("ShippingDays = %v, want 14", c.ShippingDays)
	}
	if c.Rating == nil || *c.Rating != 4.7 {
		t.Errorf("Rating = %v, want 4.7", c.Rating)
	}
	if c.SourceTag != TagScraped {
		t.Errorf("SourceTag = %q", c.SourceTag)
	}
}

// TestExtractCandidatesFromJSON_AlternateKeyPaths は別のキーパスでも商品リストが見つかることを検証する。
func TestExtractCandidatesFromJSON_AlternateKeyPaths(t *testing.T) {
	base := mustParseURL(t, "https://www.aliexpress.com/wholesale")

	blob := []byte(`{
		"data": {
			"products": [
				{
					"name": "Mechanical Keyboard 87 Keys",
					"url": "https://www.aliexpress.com/item/2005001.html",
					"price": "29.99"
				}
			]
		}
	}`)

	got := extractCandidatesFromJSON(blob, base, model.CurrencyUSD, TagScraped, time.Now())
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Price != 29.99 {
		t.Errorf("Price = %v, want 29.99", got[0].Price)
	}
}

func TestExtractCandidatesFromJSON_InvalidJSON_ReturnsNil(t *testing.T) {
	got := extractCandidatesFromJSON([]byte("{not json"), nil, model.CurrencyUSD, TagScraped, time.Now())
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
