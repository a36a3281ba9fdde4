// Package model はドメインモデルを定義する。
package model

import "time"

// Currency は検索対象の通貨を表す。
type Currency string

const (
	// CurrencyUSD は米ドル。マーケットプレイスには米国ロケールで問い合わせる。
	CurrencyUSD Currency = "USD"
	// CurrencyEUR はユーロ。マーケットプレイスには欧州ロケールで問い合わせる。
	CurrencyEUR Currency = "EUR"
)

// リクエスト制約の境界値。
const (
	// MaxLimit はlimitの上限。
	MaxLimit = 50
	// MaxShippingDaysCeiling はmax_shipping_daysの上限。
	MaxShippingDaysCeiling = 60
)

// FilterRequest は商品フィルタリクエストを表す。
// リクエスト境界で1回バリデーションされ、以降はイミュータブルとして扱う。
type FilterRequest struct {
	Keywords        string   `json:"keywords"`
	MinPrice        float64  `json:"min_price"`
	MaxPrice        float64  `json:"max_price"`
	Currency        Currency `json:"currency"`
	MaxShippingDays int      `json:"max_shipping_days"`
	Limit           int      `json:"limit"`

	// Seed は合成ジェネレーターの乱数シード。
	// 0の場合はキーワードから決定的に導出される（テスト再現性用）。
	Seed int64 `json:"seed,omitempty"`
}

// Validate はリクエスト制約を検証し、最初の違反をAPIErrorとして返す。
// 違反がない場合はnilを返す。
func (r *FilterRequest) Validate() *APIError {
	if r.Keywords == "" {
		return NewMissingKeywordsError()
	}
	if r.MinPrice < 0 || r.MaxPrice < 0 {
		return NewInvalidPriceRangeError(r.MinPrice, r.MaxPrice)
	}
	if r.MinPrice >= r.MaxPrice {
		return NewInvalidPriceRangeError(r.MinPrice, r.MaxPrice)
	}
	if r.Currency != CurrencyUSD && r.Currency != CurrencyEUR {
		return NewInvalidCurrencyError(string(r.Currency))
	}
	if r.MaxShippingDays < 1 || r.MaxShippingDays > MaxShippingDaysCeiling {
		return NewInvalidShippingDaysError(r.MaxShippingDays)
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return NewInvalidLimitError(r.Limit)
	}
	return nil
}

// Candidate はバリデーション前のマーケットプレイス商品候補を表す。
// Sourceがスクレイプまたは合成により生成する中間データ。
type Candidate struct {
	URL          string
	Title        string
	Price        float64
	Currency     Currency
	ImageURL     string
	ShippingDays *int
	Rating       *float64
	SourceTag    string
	CapturedAt   time.Time
}

// AcceptedProduct はバリデーションを通過した商品の出力レコード。
type AcceptedProduct struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	Currency       Currency `json:"currency"`
	ImageURL       string   `json:"image_url"`
	SourcePlatform string   `json:"source_platform"`
	ScrapedAt      string   `json:"scraped_at"` // ISO-8601 UTC
}

// DiscardRecord はバリデーションで棄却された候補の出力レコード。
// HTTPStatusは到達性チェック失敗時のみ200以外の値を持つ。
type DiscardRecord struct {
	CandidateURL string `json:"candidate_url"`
	Reason       string `json:"reason"`
	HTTPStatus   int    `json:"http_status"`
	Note         string `json:"note,omitempty"`
}

// FilterMeta はフィルタ結果の診断メタデータ。
type FilterMeta struct {
	Returned       int   `json:"returned"`
	DiscardedCount int   `json:"discarded_count"`
	TimeMS         int64 `json:"time_ms"`
	Partial        bool  `json:"partial"`
	Fallback       bool  `json:"fallback,omitempty"`
}

// FilterResponse はフィルタパイプラインの正規レスポンス形式。
// 採用・棄却の両リストは候補の走査順を保持する。
type FilterResponse struct {
	Requested FilterRequest     `json:"requested"`
	Results   []AcceptedProduct `json:"results"`
	Discarded []DiscardRecord   `json:"discarded"`
	Meta      FilterMeta        `json:"meta"`
}
