// Package model はドメインモデルを定義する。
package model

import "time"

// Product は商品カタログのエントリを表す。
// urlが一意キーであり、UPSERTの衝突解決に使用される。
type Product struct {
	ID             string
	Title          string
	Price          float64
	Currency       Currency
	URL            string
	ImageURL       string
	ShippingDays   *int
	Category       string
	Rating         *float64
	SourcePlatform string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
