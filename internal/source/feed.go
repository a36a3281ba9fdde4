package source

import (
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/dropscout/internal/model"
)

// candidatesFromDealsFeed はマーケットプレイスのディールフィード（RSS）から候補を抽出する。
// 相対リンクはfeedURLを基準に解決する。価格はタイトルまたは説明文中の
// 価格トークンから取得し、価格が見つからないエントリは破棄する。
func candidatesFromDealsFeed(body []byte, feedURL string, currency model.Currency, now time.Time) ([]model.Candidate, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("ディールフィードのパースに失敗: %w", err)
	}

	base, err := url.Parse(feedURL)
	if err != nil {
		base = nil
	}

	var candidates []model.Candidate
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		title := NormalizeTitle(item.Title)
		if title == "" {
			continue
		}

		normalized := NormalizeURL(item.Link, base)
		if normalized == "" {
			continue
		}

		price, ok := priceFromFeedItem(item)
		if !ok {
			continue
		}

		c := model.Candidate{
			URL:        normalized,
			Title:      title,
			Price:      price,
			Currency:   currency,
			SourceTag:  TagScraped,
			CapturedAt: now,
		}
		if item.Image != nil {
			c.ImageURL = NormalizeURL(item.Image.URL, base)
		}
		candidates = append(candidates, c)
	}

	return DedupCandidates(candidates), nil
}

// priceFromFeedItem はフィードエントリのタイトル・説明文から価格トークンを探す。
func priceFromFeedItem(item *gofeed.Item) (float64, bool) {
	for _, text := range []string{item.Title, item.Description} {
		if token := priceTokenPattern.FindString(text); token != "" {
			if price, ok := ParsePriceToken(token); ok {
				return price, true
			}
		}
	}
	return 0, false
}
