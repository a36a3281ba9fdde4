// Package validate は商品候補のフィルタリング検証を提供する。
package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// minWellFormedTitleLength は整形済み候補として受理するタイトルの最小長。
const minWellFormedTitleLength = 3

// WellFormed は候補が検証に進める最低限の形を満たしているかを返す。
// 満たさない候補は破棄記録を残さず黙って除外される。
func WellFormed(c model.Candidate) bool {
	if c.Price <= 0 {
		return false
	}
	if len(strings.TrimSpace(c.Title)) < minWellFormedTitleLength {
		return false
	}
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	return true
}

// Validator は候補をフィルタ条件に対して固定順で検証する。
// 検証順は価格下限、価格上限、配送日数、URL到達性の順で固定であり、
// 最初に失敗した検証の破棄理由のみが記録される。
type Validator struct {
	prober   Prober
	platform string
}

// NewValidator はValidatorの新しいインスタンスを生成する。
func NewValidator(prober Prober, platform string) *Validator {
	return &Validator{prober: prober, platform: platform}
}

// Validate は候補を検証し、受理された商品または破棄記録のどちらか一方を返す。
// probeEnabledがfalseの場合、URL到達性検証は常に成功として扱われ、
// 受理時のHTTPステータスは200として記録される。
func (v *Validator) Validate(ctx context.Context, req model.FilterRequest, c model.Candidate, probeEnabled bool) (*model.AcceptedProduct, *model.DiscardRecord) {
	// 1. 価格下限
	if c.Price < req.MinPrice {
		return nil, &model.DiscardRecord{
			CandidateURL: c.URL,
			Reason:       fmt.Sprintf("Price $%.2f below minimum $%.2f", c.Price, req.MinPrice),
			HTTPStatus:   http.StatusOK,
		}
	}

	// 2. 価格上限
	if c.Price > req.MaxPrice {
		return nil, &model.DiscardRecord{
			CandidateURL: c.URL,
			Reason:       fmt.Sprintf("Price $%.2f above maximum $%.2f", c.Price, req.MaxPrice),
			HTTPStatus:   http.StatusOK,
		}
	}

	// 3. 配送日数（未知の場合は検証をスキップ）
	if c.ShippingDays != nil && *c.ShippingDays > req.MaxShippingDays {
		return nil, &model.DiscardRecord{
			CandidateURL: c.URL,
			Reason:       fmt.Sprintf("Shipping %d days exceeds maximum %d", *c.ShippingDays, req.MaxShippingDays),
			HTTPStatus:   http.StatusOK,
		}
	}

	// 4. URL到達性
	if probeEnabled {
		status := v.prober.Probe(ctx, c.URL)
		if status != http.StatusOK {
			return nil, &model.DiscardRecord{
				CandidateURL: c.URL,
				Reason:       "URL validation failed",
				HTTPStatus:   status,
			}
		}
	}

	return &model.AcceptedProduct{
		URL:            c.URL,
		Title:          c.Title,
		Price:          c.Price,
		Currency:       c.Currency,
		ImageURL:       c.ImageURL,
		SourcePlatform: v.platform,
		ScrapedAt:      c.CapturedAt.UTC().Format(time.RFC3339),
	}, nil
}
