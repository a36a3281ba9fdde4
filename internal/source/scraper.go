package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

const (
	// PlatformAliExpress はライブスクレイパーが対象とするマーケットプレイスタグ。
	PlatformAliExpress = "aliexpress"
	// TagScraped はライブスクレイプで得られた候補のソースタグ。
	TagScraped = "scraped"
)

// headerPool はリクエストごとにローテーションするUser-Agentのプール。
// 固定パターンのリクエストを避けるために使用する。
var headerPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// mobileUserAgent はモバイルプロファイル戦略専用のUser-Agent。
const mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

// regionalProfile は通貨に対応するマーケットプレイスの地域設定。
type regionalProfile struct {
	currencyCode string
	region       string
	locale       string
	acceptLang   string
}

// profileFor は通貨から地域プロファイルを導出する。
// マーケットプレイスへの問い合わせは通貨の地域ロケールで発行される。
func profileFor(currency model.Currency) regionalProfile {
	if currency == model.CurrencyEUR {
		return regionalProfile{
			currencyCode: "EUR",
			region:       "FR",
			locale:       "fr_FR",
			acceptLang:   "fr-FR,fr;q=0.9,en;q=0.5",
		}
	}
	return regionalProfile{
		currencyCode: "USD",
		region:       "US",
		locale:       "en_US",
		acceptLang:   "en-US,en;q=0.9",
	}
}

// ScraperConfig はライブスクレイパーの設定。
type ScraperConfig struct {
	// BaseURL はデスクトップ向けエンドポイントのベースURL。
	BaseURL string
	// MobileBaseURL はモバイルプロファイル戦略のベースURL。
	MobileBaseURL string
	// FeedURL はディールフィード戦略のエンドポイント。空の場合はBaseURLから導出する。
	FeedURL string
	// Timeout は1リクエストあたりのHTTPタイムアウト。
	Timeout time.Duration
	// MaxBodySize はレスポンスボディの最大読み込みサイズ。
	MaxBodySize int64
	// MinStrategyDelay / MaxStrategyDelay は戦略間のスリープ範囲。
	// 固定間隔を避けるため、この範囲から一様乱数でジッターを加える。
	MinStrategyDelay time.Duration
	MaxStrategyDelay time.Duration
}

// LiveScraper はマーケットプレイスのライブスクレイピングを行うCandidateSource。
// 複数の取得戦略を順に試行し、最初に候補が得られた戦略を採用する。
// HTTPセッション（Cookie、ヘッダープール）は呼び出しごとに独立しており、
// 呼び出し間で状態を共有しない。
type LiveScraper struct {
	cfg    ScraperConfig
	logger *slog.Logger
}

// NewLiveScraper はLiveScraperの新しいインスタンスを生成する。
// 未設定の項目にはデフォルト値を適用する。
func NewLiveScraper(cfg ScraperConfig, logger *slog.Logger) *LiveScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.aliexpress.com"
	}
	if cfg.MobileBaseURL == "" {
		cfg.MobileBaseURL = "https://m.aliexpress.com"
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = cfg.BaseURL + "/rss/deals.xml"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 5 * 1024 * 1024
	}
	if cfg.MinStrategyDelay == 0 && cfg.MaxStrategyDelay == 0 {
		cfg.MinStrategyDelay = 1 * time.Second
		cfg.MaxStrategyDelay = 4 * time.Second
	}
	return &LiveScraper{cfg: cfg, logger: logger}
}

// Platform はマーケットプレイスのプラットフォームタグを返す。
func (s *LiveScraper) Platform() string { return PlatformAliExpress }

// Tag はソースタグを返す。
func (s *LiveScraper) Tag() string { return TagScraped }

// strategy は1つの取得戦略を表す。
type strategy struct {
	name      string
	url       string
	userAgent string
	isFeed    bool
}

// strategies はリクエストに対する取得戦略を優先順に構築する。
func (s *LiveScraper) strategies(req model.FilterRequest) []strategy {
	q := url.QueryEscape(req.Keywords)
	desktopUA := headerPool[rand.Intn(len(headerPool))]

	return []strategy{
		{
			name:      "category",
			url:       fmt.Sprintf("%s/category/search.html?SearchText=%s", s.cfg.BaseURL, q),
			userAgent: desktopUA,
		},
		{
			name:      "search",
			url:       fmt.Sprintf("%s/wholesale?SearchText=%s", s.cfg.BaseURL, q),
			userAgent: desktopUA,
		},
		{
			name:      "mobile",
			url:       fmt.Sprintf("%s/search.htm?keywords=%s", s.cfg.MobileBaseURL, q),
			userAgent: mobileUserAgent,
		},
		{
			name:      "deals-feed",
			url:       fmt.Sprintf("%s?keywords=%s", s.cfg.FeedURL, q),
			userAgent: desktopUA,
			isFeed:    true,
		},
	}
}

// Fetch は取得戦略を順に試行し、最初に候補が得られた戦略の結果を返す。
// 全戦略が候補0件の場合はEmpty、途中で一時的失敗のみ発生した場合はTransientを返す。
// 部分的な結果は失敗とせず、そのまま返す。
func (s *LiveScraper) Fetch(ctx context.Context, req model.FilterRequest, maxCandidates int) Outcome {
	if maxCandidates <= 0 {
		return Fatal("候補バジェットが0以下です")
	}

	now := time.Now()
	profile := profileFor(req.Currency)
	client := s.newSessionClient(profile)

	var lastTransient string

	for i, strat := range s.strategies(req) {
		// 戦略間のジッタースリープ（固定間隔のリクエストパターンを避ける）
		if i > 0 {
			if err := s.strategyDelay(ctx); err != nil {
				return Transient("コンテキストがキャンセルされました")
			}
		}

		candidates, err := s.runStrategy(ctx, client, strat, profile, req.Currency, now)
		if err != nil {
			s.logger.Warn("取得戦略が失敗しました",
				slog.String("strategy", strat.name),
				slog.String("keywords", req.Keywords),
				slog.String("error", err.Error()),
			)
			lastTransient = err.Error()
			continue
		}

		if len(candidates) == 0 {
			s.logger.Info("取得戦略は成功しましたが候補が0件でした",
				slog.String("strategy", strat.name),
				slog.String("keywords", req.Keywords),
			)
			continue
		}

		if len(candidates) > maxCandidates {
			candidates = candidates[:maxCandidates]
		}

		s.logger.Info("スクレイプが完了しました",
			slog.String("strategy", strat.name),
			slog.String("keywords", req.Keywords),
			slog.Int("candidates", len(candidates)),
		)
		return Ok(candidates)
	}

	if lastTransient != "" {
		return Transient(lastTransient)
	}
	return Empty("全戦略で候補が得られませんでした")
}

// newSessionClient は呼び出しごとに独立したHTTPセッションを生成する。
// 通貨・地域をピン留めするCookieをベースURLドメインに設定する。
func (s *LiveScraper) newSessionClient(profile regionalProfile) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.Newは現行実装ではエラーを返さない
		return &http.Client{Timeout: s.cfg.Timeout}
	}

	if base, err := url.Parse(s.cfg.BaseURL); err == nil {
		jar.SetCookies(base, []*http.Cookie{
			{
				Name: "aep_usuc_f",
				Value: fmt.Sprintf("site=glo&c_tp=%s&region=%s&b_locale=%s",
					profile.currencyCode, profile.region, profile.locale),
			},
			{Name: "intl_locale", Value: profile.locale},
		})
	}

	return &http.Client{Timeout: s.cfg.Timeout, Jar: jar}
}

// runStrategy は1つの戦略を実行して候補を抽出する。
func (s *LiveScraper) runStrategy(ctx context.Context, client *http.Client, strat strategy, profile regionalProfile, currency model.Currency, now time.Time) ([]model.Candidate, error) {
	body, err := s.fetchBody(ctx, client, strat, profile)
	if err != nil {
		return nil, err
	}

	if strat.isFeed {
		return candidatesFromDealsFeed(body, strat.url, currency, now)
	}
	return ExtractCandidates(body, strat.url, currency, TagScraped, now), nil
}

// fetchBody は戦略のURLにGETリクエストを発行し、ボディを読み込む。
// 200以外のステータスはエラーとして扱う。
func (s *LiveScraper) fetchBody(ctx context.Context, client *http.Client, strat strategy, profile regionalProfile) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strat.url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", strat.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", profile.acceptLang)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス %d が返されました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return body, nil
}

// strategyDelay は戦略間のジッタースリープを行う。
// コンテキストがキャンセルされた場合はエラーを返す。
func (s *LiveScraper) strategyDelay(ctx context.Context) error {
	min := s.cfg.MinStrategyDelay
	max := s.cfg.MaxStrategyDelay

	delay := min
	if max > min {
		delay = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// queryCategoryHint はキーワードからマーケットプレイスのカテゴリヒントを推定する。
// カタログ保存時のcategoryフィールドに使用される。
func queryCategoryHint(keywords string) string {
	lower := strings.ToLower(keywords)
	for _, fixture := range categoryFixtures {
		for _, kw := range fixture.keywords {
			if strings.Contains(lower, kw) {
				return fixture.name
			}
		}
	}
	return categoryGeneric
}

// CategoryFor はキーワードから検出したカテゴリ名を返す。
// 部分文字列一致で先勝ち、該当なしの場合は"generic"。
func CategoryFor(keywords string) string {
	return queryCategoryHint(keywords)
}
