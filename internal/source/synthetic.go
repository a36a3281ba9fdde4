package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/hitoshi/dropscout/internal/model"
)

// TagSynthetic は合成ジェネレーターで生成された候補のソースタグ。
const TagSynthetic = "synthetic"

// categoryGeneric はどのカテゴリにも該当しない場合のフォールバックカテゴリ。
const categoryGeneric = "generic"

// categoryFixture はカテゴリごとの合成候補テンプレート。
type categoryFixture struct {
	name     string
	keywords []string
	titles   []string
	priceMin float64
	priceMax float64
	shipMin  int
	shipMax  int
}

// categoryFixtures はカテゴリ検出順に並んだ固定テーブル。
// 検出は小文字化したキーワードの部分文字列一致で先勝ち。
var categoryFixtures = []categoryFixture{
	{
		name:     "mouse",
		keywords: []string{"mouse", "mice"},
		titles: []string{
			"Wireless Gaming Mouse 2.4GHz RGB Backlit Ergonomic 6 Buttons",
			"Silent Click Optical Mouse USB Rechargeable for Laptop PC",
			"Bluetooth Vertical Ergonomic Mouse Adjustable DPI Office",
			"Mini Portable Wireless Mouse Slim Travel Mute Buttons",
		},
		priceMin: 3.5, priceMax: 25.0, shipMin: 7, shipMax: 30,
	},
	{
		name:     "keyboard",
		keywords: []string{"keyboard"},
		titles: []string{
			"Mechanical Gaming Keyboard RGB Backlit Blue Switch 87 Keys",
			"Wireless Bluetooth Keyboard Slim Rechargeable for Tablet",
			"Mini 60% Mechanical Keyboard Hot Swappable USB-C Wired",
			"Foldable Bluetooth Keyboard Portable Travel Pocket Size",
		},
		priceMin: 12.0, priceMax: 60.0, shipMin: 10, shipMax: 35,
	},
	{
		name:     "headphones",
		keywords: []string{"headphone", "headset"},
		titles: []string{
			"Wireless Over-Ear Headphones Noise Cancelling Hi-Fi Stereo",
			"Gaming Headset with Microphone LED Light for PS5 PC",
			"Foldable Bluetooth Headphones Deep Bass 40H Playtime",
			"Kids Wired Headphones Volume Limited with Cat Ears",
		},
		priceMin: 8.0, priceMax: 55.0, shipMin: 8, shipMax: 28,
	},
	{
		name:     "watch",
		keywords: []string{"watch"},
		titles: []string{
			"Smart Watch Fitness Tracker Heart Rate Blood Oxygen Monitor",
			"Men Luxury Quartz Watch Stainless Steel Waterproof Business",
			"Women Fashion Bracelet Watch Rose Gold Minimalist Dial",
			"Digital Sport Watch 50M Waterproof LED Military Outdoor",
		},
		priceMin: 6.0, priceMax: 80.0, shipMin: 10, shipMax: 40,
	},
	{
		name:     "phone",
		keywords: []string{"phone", "smartphone"},
		titles: []string{
			"Shockproof Phone Case Transparent Soft TPU Cover Anti-Drop",
			"Magnetic Phone Holder for Car Dashboard 360 Rotation",
			"Tempered Glass Screen Protector 9H Full Coverage 3 Pack",
			"Universal Phone Ring Stand Metal Finger Grip Kickstand",
		},
		priceMin: 1.5, priceMax: 20.0, shipMin: 7, shipMax: 25,
	},
	{
		name:     "earbuds",
		keywords: []string{"earbud", "earphone", "airpod"},
		titles: []string{
			"TWS Wireless Earbuds Bluetooth 5.3 Touch Control with Mic",
			"Sport Earphones In-Ear Waterproof Noise Reduction Bass",
			"Mini Invisible Sleep Earbuds Tiny Comfortable Soft",
			"Bone Conduction Open-Ear Headphones Wireless Sport",
		},
		priceMin: 5.0, priceMax: 40.0, shipMin: 7, shipMax: 30,
	},
	{
		name:     "cable",
		keywords: []string{"cable", "cord"},
		titles: []string{
			"USB-C Fast Charging Cable Nylon Braided 3A Data Sync 2m",
			"3-in-1 Charging Cable Multi Connector Lightning Micro USB",
			"HDMI Cable 4K 60Hz High Speed Gold Plated 1.5m",
			"Magnetic Charging Cable LED Rotating 540 Degree 3 Tips",
		},
		priceMin: 1.0, priceMax: 12.0, shipMin: 5, shipMax: 20,
	},
	{
		name:     "charger",
		keywords: []string{"charger", "charging"},
		titles: []string{
			"65W GaN Fast Charger USB-C PD Wall Adapter 3 Ports",
			"Wireless Charger Pad 15W Qi Fast Charging Station",
			"Car Charger Dual USB QC3.0 Mini Aluminum Alloy",
			"Power Bank 20000mAh Slim Portable Charger LED Display",
		},
		priceMin: 4.0, priceMax: 35.0, shipMin: 7, shipMax: 28,
	},
	{
		name:     categoryGeneric,
		keywords: nil,
		titles: []string{
			"Multifunctional Home Gadget Portable Storage Organizer",
			"LED Night Light USB Rechargeable Motion Sensor Lamp",
			"Mini Desktop Vacuum Cleaner Cordless Keyboard Cleaner",
			"Stainless Steel Kitchen Tool Set Multipurpose Utensil",
		},
		priceMin: 2.0, priceMax: 30.0, shipMin: 7, shipMax: 35,
	},
}

// fixtureFor はキーワードからカテゴリフィクスチャを検出する。
func fixtureFor(keywords string) categoryFixture {
	lower := strings.ToLower(keywords)
	for _, fixture := range categoryFixtures {
		for _, kw := range fixture.keywords {
			if strings.Contains(lower, kw) {
				return fixture
			}
		}
	}
	// 末尾のgenericフィクスチャ
	return categoryFixtures[len(categoryFixtures)-1]
}

// SyntheticGenerator はフィクスチャ駆動の決定的な合成候補ソース。
// ネットワークには一切アクセスせず、常に成功する。
// 乱数シードはリクエストから導出されるため、同一リクエストは同一候補列を生成する。
type SyntheticGenerator struct {
	platform string
}

// NewSyntheticGenerator はSyntheticGeneratorの新しいインスタンスを生成する。
// platformには生成URLのホストに対応するプラットフォームタグを指定する。
func NewSyntheticGenerator(platform string) *SyntheticGenerator {
	if platform == "" {
		platform = PlatformAliExpress
	}
	return &SyntheticGenerator{platform: platform}
}

// Platform はプラットフォームタグを返す。
func (g *SyntheticGenerator) Platform() string { return g.platform }

// Tag はソースタグを返す。
func (g *SyntheticGenerator) Tag() string { return TagSynthetic }

// Fetch はリクエストからmaxCandidates件の合成候補を生成する。
// 常にStateOKを返す（maxCandidatesが0以下の場合のみEmpty）。
func (g *SyntheticGenerator) Fetch(_ context.Context, req model.FilterRequest, maxCandidates int) Outcome {
	if maxCandidates <= 0 {
		return Empty("候補バジェットが0以下です")
	}

	fixture := fixtureFor(req.Keywords)
	rng := rand.New(rand.NewSource(SeedFor(req)))
	now := time.Now()

	candidates := make([]model.Candidate, 0, maxCandidates)
	for i := 0; i < maxCandidates; i++ {
		title := fixture.titles[rng.Intn(len(fixture.titles))]

		// 価格: カテゴリの価格帯から一様サンプリング（セント単位に丸め）
		price := fixture.priceMin + rng.Float64()*(fixture.priceMax-fixture.priceMin)
		price = float64(int(price*100)) / 100

		// 配送日数: カテゴリの配送帯から整数サンプリング
		shipping := fixture.shipMin + rng.Intn(fixture.shipMax-fixture.shipMin+1)

		// 評価: 3.5〜5.0の範囲
		rating := 3.5 + rng.Float64()*1.5
		rating = float64(int(rating*10)) / 10

		itemID := 1005000000000 + rng.Int63n(4000000000)
		imageID := rng.Int63()

		candidates = append(candidates, model.Candidate{
			URL:          fmt.Sprintf("https://www.aliexpress.com/item/%d.html", itemID),
			Title:        fmt.Sprintf("%s #%d", title, i+1),
			Price:        price,
			Currency:     req.Currency,
			ImageURL:     fmt.Sprintf("https://ae01.alicdn.com/kf/S%016x.jpg", imageID),
			ShippingDays: &shipping,
			Rating:       &rating,
			SourceTag:    TagSynthetic,
			CapturedAt:   now,
		})
	}

	return Ok(candidates)
}

// SeedFor はリクエストから合成生成用の乱数シードを導出する。
// 明示的なSeedが指定されていればそれを使用し、
// 未指定（0）の場合はキーワードのFNV-1aハッシュを使用する。
// 同一リクエストからは常に同一シードが導出される。
func SeedFor(req model.FilterRequest) int64 {
	if req.Seed != 0 {
		return req.Seed
	}
	h := fnv.New64a()
	h.Write([]byte(req.Keywords))
	return int64(h.Sum64())
}
