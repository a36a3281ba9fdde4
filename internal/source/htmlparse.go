package source

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/dropscout/internal/model"
)

// scriptPayloadMarkers はインラインJSONペイロードを含むscriptブロブの目印。
// いずれかを含むscriptのみJSON抽出を試行する。
var scriptPayloadMarkers = []string{
	`"itemList"`,
	`"products"`,
	`"items"`,
	`"results"`,
}

// priceTokenPattern は商品リンク近傍の価格トークンにマッチする。
// 通貨記号の前置・後置の両方に対応する。
var priceTokenPattern = regexp.MustCompile(`(?:US\s?\$|[$€£¥])\s?\d[\d.,]*|\d[\d.,]*\s?(?:[$€])`)

// ExtractCandidates はレスポンスボディから商品候補を抽出する。
// 抽出は次の順で試行し、最初に候補が得られた方式を採用する:
//  1. scriptブロブ内のインラインJSONペイロード（payloadKeyPathsの探索）
//  2. DOMパース（商品リンクアンカー + 直近祖先の価格トークン）
//
// いずれの方式でも候補はURL・小文字化タイトルで重複除去される。
func ExtractCandidates(body []byte, pageURL string, currency model.Currency, sourceTag string, now time.Time) []model.Candidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	// 方式1: インラインJSONペイロード
	if candidates := extractFromScripts(doc, base, currency, sourceTag, now); len(candidates) > 0 {
		return DedupCandidates(candidates)
	}

	// 方式2: DOMパース
	if candidates := extractFromDOM(doc, base, currency, sourceTag, now); len(candidates) > 0 {
		return DedupCandidates(candidates)
	}

	return nil
}

// extractFromScripts はscriptタグ内のJSONブロブから候補を抽出する。
func extractFromScripts(doc *goquery.Document, base *url.URL, currency model.Currency, sourceTag string, now time.Time) []model.Candidate {
	var candidates []model.Candidate

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !containsPayloadMarker(text) {
			return true
		}

		for _, blob := range jsonBlobsFromScript(text) {
			extracted := extractCandidatesFromJSON(blob, base, currency, sourceTag, now)
			if len(extracted) > 0 {
				candidates = extracted
				return false // 最初に成功したブロブを採用
			}
		}
		return true
	})

	return candidates
}

// containsPayloadMarker はscriptテキストが商品ペイロードの目印を含むかを返す。
func containsPayloadMarker(text string) bool {
	for _, marker := range scriptPayloadMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// jsonBlobsFromScript はscriptテキストからJSONオブジェクト候補を切り出す。
// 代入形式（window.runParams = {...};）と生のJSONオブジェクトの両方に対応する。
func jsonBlobsFromScript(text string) [][]byte {
	var blobs [][]byte

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		blobs = append(blobs, []byte(trimmed))
	}

	// 代入形式: 最初の'{'から最後の'}'までを1オブジェクトとみなす
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		blobs = append(blobs, []byte(text[start:end+1]))
	}

	return blobs
}

// productLinkSelectors は商品詳細ページへのアンカーを検出するセレクタ。
var productLinkSelectors = []string{
	`a[href*="/item/"]`,
	`a[href*="/product/"]`,
	`a[href*="productId="]`,
}

// extractFromDOM は商品リンクアンカーと直近祖先の価格トークンから候補を抽出する。
func extractFromDOM(doc *goquery.Document, base *url.URL, currency model.Currency, sourceTag string, now time.Time) []model.Candidate {
	var candidates []model.Candidate

	for _, selector := range productLinkSelectors {
		doc.Find(selector).Each(func(_ int, anchor *goquery.Selection) {
			href, ok := anchor.Attr("href")
			if !ok {
				return
			}
			normalized := NormalizeURL(href, base)
			if normalized == "" {
				return
			}

			title := NormalizeTitle(anchorTitle(anchor))
			if title == "" {
				return
			}

			price, ok := nearestAncestorPrice(anchor)
			if !ok {
				// 価格トークンが見つからない候補は破棄する
				return
			}

			c := model.Candidate{
				URL:        normalized,
				Title:      title,
				Price:      price,
				Currency:   currency,
				SourceTag:  sourceTag,
				CapturedAt: now,
			}
			if img, ok := anchor.Find("img").Attr("src"); ok {
				c.ImageURL = NormalizeURL(img, base)
			}
			candidates = append(candidates, c)
		})

		if len(candidates) > 0 {
			break
		}
	}

	return candidates
}

// anchorTitle はアンカーからタイトル文字列を取得する。
// title属性を優先し、なければアンカーテキストを使用する。
func anchorTitle(anchor *goquery.Selection) string {
	if title, ok := anchor.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return title
	}
	return anchor.Text()
}

// maxAncestorDepth は価格トークンを探索する祖先要素の最大深さ。
const maxAncestorDepth = 4

// nearestAncestorPrice はアンカーの祖先要素を近い順に辿り、
// 最初に見つかった価格トークンをパースして返す。
func nearestAncestorPrice(anchor *goquery.Selection) (float64, bool) {
	node := anchor
	for depth := 0; depth < maxAncestorDepth; depth++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}
		if token := priceTokenPattern.FindString(node.Text()); token != "" {
			if price, ok := ParsePriceToken(token); ok {
				return price, true
			}
		}
	}
	return 0, false
}
