// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, job, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingKeywords     = "MISSING_KEYWORDS"
	ErrCodeInvalidPriceRange   = "INVALID_PRICE_RANGE"
	ErrCodeInvalidCurrency     = "INVALID_CURRENCY"
	ErrCodeInvalidShippingDays = "INVALID_SHIPPING_DAYS"
	ErrCodeInvalidLimit        = "INVALID_LIMIT"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeMissingQuery        = "MISSING_QUERY"
	ErrCodeJobNotFound         = "JOB_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeJobNotCancelable    = "JOB_NOT_CANCELABLE"
	ErrCodeRevokeFailed        = "REVOKE_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewMissingKeywordsError はキーワード未指定エラーを生成する。
func NewMissingKeywordsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingKeywords,
		Message:  "検索キーワードが指定されていません。",
		Category: "validation",
		Action:   "keywordsに1文字以上の検索文字列を指定してください。",
	}
}

// NewInvalidPriceRangeError は無効な価格帯エラーを生成する。
func NewInvalidPriceRangeError(minPrice, maxPrice float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriceRange,
		Message:  fmt.Sprintf("無効な価格帯です: min=%.2f max=%.2f", minPrice, maxPrice),
		Category: "validation",
		Action:   "min_priceとmax_priceは0以上の値で、min_price < max_priceとなるように指定してください。",
	}
}

// NewInvalidCurrencyError は無効な通貨エラーを生成する。
func NewInvalidCurrencyError(currency string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCurrency,
		Message:  fmt.Sprintf("無効な通貨です: %s", currency),
		Category: "validation",
		Action:   "currencyには USD または EUR を指定してください。",
	}
}

// NewInvalidShippingDaysError は無効な配送日数エラーを生成する。
func NewInvalidShippingDaysError(days int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidShippingDays,
		Message:  fmt.Sprintf("無効な最大配送日数です: %d", days),
		Category: "validation",
		Action:   fmt.Sprintf("max_shipping_daysは1から%dの範囲で指定してください。", MaxShippingDaysCeiling),
	}
}

// NewInvalidLimitError は無効な取得件数エラーを生成する。
func NewInvalidLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %d", limit),
		Category: "validation",
		Action:   fmt.Sprintf("limitは1から%dの範囲で指定してください。", MaxLimit),
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingQueryError はジョブ投入時のクエリ未指定エラーを生成する。
func NewMissingQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingQuery,
		Message:  "検索クエリが指定されていません。",
		Category: "validation",
		Action:   "queryに1文字以上の検索文字列を指定してください。",
	}
}

// NewJobNotFoundError はジョブ未検出エラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定されたジョブが見つかりません: %s", jobID),
		Category: "job",
		Action:   "ジョブIDを確認してください。",
	}
}

// NewProductNotFoundError はカタログ上の商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "validation",
		Action:   "商品IDを確認してください。",
	}
}

// NewJobNotCancelableError は終端状態のジョブに対するキャンセルエラーを生成する。
// メッセージには現在のステータスを含める。
func NewJobNotCancelableError(status JobStatus) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotCancelable,
		Message:  fmt.Sprintf("ジョブは既に終端状態のためキャンセルできません: %s", status),
		Category: "job",
		Action:   "PENDINGまたはSTARTED状態のジョブのみキャンセルできます。",
	}
}

// NewInvalidJobSourceError はジョブ投入時の不正なソース指定エラーを生成する。
func NewInvalidJobSourceError(source string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無効なソースです: %s", source),
		Category: "validation",
		Action:   "sourceには scraped または synthetic を指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRevokeFailedError はキャンセル伝達の失敗エラーを生成する。
func NewRevokeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRevokeFailed,
		Message:  fmt.Sprintf("ジョブのキャンセル処理に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
