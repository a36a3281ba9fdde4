package validate

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/dropscout/internal/security"
)

// Prober は候補URLの到達性を確認するインターフェース。
type Prober interface {
	// Probe はURLに到達性プローブを送信し、観測したHTTPステータスコードを返す。
	// リクエスト自体が失敗した場合（タイムアウト、DNS失敗等）は0を返す。
	Probe(ctx context.Context, rawURL string) int
}

// HeadProber はHEADリクエストで到達性を確認するProberの実装。
// スクレイプ由来の信頼できないURLに対して発行するため、
// SSRF防止機能付きのHTTPクライアントを使用する。
type HeadProber struct {
	guard   security.ProbeGuardService
	client  *http.Client
	timeout time.Duration
}

// NewHeadProber はHeadProberの新しいインスタンスを生成する。
func NewHeadProber(guard security.ProbeGuardService, timeout time.Duration) *HeadProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HeadProber{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		timeout: timeout,
	}
}

// Probe はHEADリクエストを発行し、観測したHTTPステータスコードを返す。
// URL検証失敗・リクエスト失敗はいずれも0を返す。
func (p *HeadProber) Probe(ctx context.Context, rawURL string) int {
	if err := p.guard.ValidateURL(rawURL); err != nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	return resp.StatusCode
}
