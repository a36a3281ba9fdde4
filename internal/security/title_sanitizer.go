package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleSanitizerService はスクレイプ由来のテキストをサニタイズするインターフェース。
// 商品タイトルはマークアップを一切含まないプレーンテキストとして保存する。
type TitleSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去し、前後の空白を取り除く。
	Sanitize(text string) string
}

// titleSanitizer はbluemondayのStrictPolicyを使用したTitleSanitizerServiceの実装。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はTitleSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyによりすべてのHTML要素と属性が除去される。
func NewTitleSanitizer() *titleSanitizer {
	return &titleSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去し、前後の空白を取り除く。
func (s *titleSanitizer) Sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}
