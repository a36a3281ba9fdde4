package source

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

const (
	// minScrapedTitleLength はスクレイプ候補のタイトル最小長。
	// これ未満のタイトルはリンクテキストの断片とみなして破棄する。
	minScrapedTitleLength = 10
	// maxAcceptablePrice は価格トークンとして受理する上限。
	// これを超える値はパース誤り（桁区切りの誤読等）とみなす。
	maxAcceptablePrice = 10000.0
)

// payloadKeyPaths はインラインJSONペイロード内で商品リストを探索するキーパス。
// 先頭から順に試行し、最初に見つかったリストを採用する。
var payloadKeyPaths = [][]string{
	{"mods", "itemList", "content"},
	{"data", "products"},
	{"products"},
	{"items"},
	{"results"},
}

// NormalizeURL は相対URLをbaseを基準に絶対HTTP(S) URLへ正規化する。
// "//host/…" はhttpsスキームを補い、"/path" はbaseのスキームとホストを補う。
// 絶対HTTP(S) URLにならない場合は空文字を返す。
func NormalizeURL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	} else if strings.HasPrefix(raw, "/") && base != nil {
		raw = base.Scheme + "://" + base.Host + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

// ParsePriceToken は価格トークンを通貨記号・桁区切りを除去してdecimalとしてパースする。
// (0, 10000] の範囲外の値はパース失敗として扱い、okにfalseを返す。
func ParsePriceToken(token string) (float64, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return 0, false
	}

	// 通貨記号・通貨コード・空白を除去
	replacer := strings.NewReplacer(
		"$", "", "€", "", "£", "", "¥", "",
		"US", "", "EUR", "", "USD", "",
		" ", "", " ", "",
	)
	s = replacer.Replace(s)

	// 価格レンジ表記（"1.99 - 5.99"）は下限を採用
	if idx := strings.IndexAny(s, "-~"); idx > 0 {
		s = s[:idx]
	}

	// 桁区切りの除去: カンマとピリオドが両方ある場合、後に現れる方が小数点
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// ヨーロッパ表記: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 米国表記: 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		// カンマのみ: 小数点2桁ならヨーロッパ表記の小数点、それ以外は桁区切り
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) == 2 {
			s = parts[0] + "." + parts[1]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if price <= 0 || price > maxAcceptablePrice {
		return 0, false
	}
	return price, true
}

// NormalizeTitle はタイトルの内部空白を単一スペースに折りたたむ。
// 折りたたみ後の長さがminScrapedTitleLength未満の場合は空文字を返す。
func NormalizeTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if len(title) < minScrapedTitleLength {
		return ""
	}
	return title
}

// DedupCandidates は単一取得内の重複候補を除去する。
// 第1キーはurl、第2キーは小文字化したtitle。順序は保持される。
func DedupCandidates(candidates []model.Candidate) []model.Candidate {
	seenURL := make(map[string]struct{}, len(candidates))
	seenTitle := make(map[string]struct{}, len(candidates))

	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seenURL[c.URL]; ok {
			continue
		}
		titleKey := strings.ToLower(c.Title)
		if _, ok := seenTitle[titleKey]; ok {
			continue
		}
		seenURL[c.URL] = struct{}{}
		seenTitle[titleKey] = struct{}{}
		out = append(out, c)
	}
	return out
}

// extractCandidatesFromJSON はインラインJSONペイロードから候補を抽出する。
// payloadKeyPathsを順に辿り、最初に見つかった商品リストをパースする。
func extractCandidatesFromJSON(blob []byte, base *url.URL, currency model.Currency, sourceTag string, now time.Time) []model.Candidate {
	var payload map[string]any
	if err := json.Unmarshal(blob, &payload); err != nil {
		return nil
	}

	for _, path := range payloadKeyPaths {
		list, ok := walkKeyPath(payload, path)
		if !ok {
			continue
		}

		var candidates []model.Candidate
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if c, ok := candidateFromProductMap(m, base, currency, sourceTag, now); ok {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			return candidates
		}
	}
	return nil
}

// walkKeyPath はネストしたマップをキーパスに沿って辿り、末端のリストを返す。
func walkKeyPath(payload map[string]any, path []string) ([]any, bool) {
	var current any = payload
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	list, ok := current.([]any)
	return list, ok
}

// titleKeys / urlKeys / imageKeys / priceKeys は商品マップのフィールド名の揺れを吸収する。
var (
	titleKeys = []string{"title", "name", "subject", "productTitle"}
	urlKeys   = []string{"productDetailUrl", "detailUrl", "productUrl", "url", "link"}
	imageKeys = []string{"imageUrl", "imgUrl", "image_url", "image", "productImage"}
	priceKeys = []string{"salePrice", "appSalePrice", "price", "minPrice", "value"}
)

// candidateFromProductMap は1商品分のJSONマップからCandidateを構築する。
// title・price・urlのいずれかが取得できない場合はfalseを返す。
func candidateFromProductMap(m map[string]any, base *url.URL, currency model.Currency, sourceTag string, now time.Time) (model.Candidate, bool) {
	title := NormalizeTitle(firstStringField(m, titleKeys))
	if title == "" {
		return model.Candidate{}, false
	}

	rawURL := firstStringField(m, urlKeys)
	normalized := NormalizeURL(rawURL, base)
	if normalized == "" {
		return model.Candidate{}, false
	}

	price, ok := firstPriceField(m, priceKeys)
	if !ok {
		return model.Candidate{}, false
	}

	c := model.Candidate{
		URL:        normalized,
		Title:      title,
		Price:      price,
		Currency:   currency,
		ImageURL:   NormalizeURL(firstStringField(m, imageKeys), base),
		SourceTag:  sourceTag,
		CapturedAt: now,
	}

	if days, ok := intField(m, "shippingDays"); ok {
		c.ShippingDays = &days
	} else if days, ok := intField(m, "deliveryDays"); ok {
		c.ShippingDays = &days
	}
	if rating, ok := floatField(m, "averageStar"); ok {
		c.Rating = &rating
	} else if rating, ok := floatField(m, "rating"); ok {
		c.Rating = &rating
	}

	return c, true
}

// firstStringField はキーリストの先頭から最初に見つかった文字列フィールドを返す。
// ネストしたマップの場合は"value"/"displayTitle"キーを試す。
func firstStringField(m map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		case map[string]any:
			for _, inner := range []string{"value", "displayTitle", "text"} {
				if s, ok := val[inner].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// firstPriceField はキーリストの先頭から最初に有効な価格を返す。
// 数値・文字列・ネストしたマップ（minPrice/value/formattedPrice）に対応する。
func firstPriceField(m map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		if price, ok := priceFromValue(v); ok {
			return price, true
		}
	}
	return 0, false
}

// priceFromValue は任意のJSON値から価格を取り出す。
func priceFromValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if val > 0 && val <= maxAcceptablePrice {
			return val, true
		}
	case string:
		return ParsePriceToken(val)
	case map[string]any:
		for _, inner := range []string{"minPrice", "value", "formattedPrice", "formatedAmount"} {
			if nested, ok := val[inner]; ok {
				if price, ok := priceFromValue(nested); ok {
					return price, true
				}
			}
		}
	}
	return 0, false
}

// intField はJSONマップから整数フィールドを取り出す。
func intField(m map[string]any, key string) (int, bool) {
	switch val := m[key].(type) {
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

// floatField はJSONマップから数値フィールドを取り出す。
func floatField(m map[string]any, key string) (float64, bool) {
	switch val := m[key].(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
