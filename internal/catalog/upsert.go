// Package catalog は商品カタログの管理機能を提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/dropscout/internal/model"
	"github.com/hitoshi/dropscout/internal/repository"
	"github.com/hitoshi/dropscout/internal/security"
	"github.com/hitoshi/dropscout/internal/source"
)

// UpsertService は受理済み商品のカタログ登録を提供する。
// URLを同一性キーとし、重複登録を防ぎつつ冪等なUPSERTを行う。
type UpsertService struct {
	productRepo repository.ProductRepository
	sanitizer   security.TitleSanitizerService
}

// NewUpsertService はUpsertServiceの新しいインスタンスを生成する。
func NewUpsertService(
	productRepo repository.ProductRepository,
	sanitizer security.TitleSanitizerService,
) *UpsertService {
	return &UpsertService{
		productRepo: productRepo,
		sanitizer:   sanitizer,
	}
}

// UpsertProducts は受理済み商品をカタログにUPSERTする。
// 同一性判定はURLの完全一致。挿入はON CONFLICT DO NOTHINGで行われ、
// 並行する同一URLの書き込みは1行に解決される。
// updateExistingがfalseの場合、既存行は変更されない。
//
// 戻り値は挿入数、更新数、エラー。途中のエラーは処理を中断する。
func (s *UpsertService) UpsertProducts(
	ctx context.Context,
	accepted []model.AcceptedProduct,
	category string,
	updateExisting bool,
) (created int, updated int, err error) {
	if len(accepted) == 0 {
		return 0, 0, nil
	}

	now := time.Now()

	for _, p := range accepted {
		title := s.sanitizer.Sanitize(p.Title)
		if title == "" {
			continue
		}

		product := &model.Product{
			ID:             uuid.New().String(),
			Title:          title,
			Price:          p.Price,
			Currency:       p.Currency,
			URL:            p.URL,
			ImageURL:       p.ImageURL,
			Category:       category,
			SourcePlatform: p.SourcePlatform,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		inserted, createErr := s.productRepo.Create(ctx, product)
		if createErr != nil {
			slog.Error("商品の挿入でエラー",
				"url", p.URL,
				"error", createErr,
			)
			return created, updated, fmt.Errorf("商品の挿入に失敗: %w", createErr)
		}
		if inserted {
			created++
			continue
		}

		if !updateExisting {
			continue
		}

		// 既存行の非キー項目を上書き更新
		existing, findErr := s.productRepo.FindByURL(ctx, p.URL)
		if findErr != nil {
			return created, updated, fmt.Errorf("既存商品の検索に失敗: %w", findErr)
		}
		if existing == nil {
			continue
		}

		existing.Title = title
		existing.Price = p.Price
		existing.Currency = p.Currency
		existing.ImageURL = p.ImageURL
		existing.Category = category
		existing.SourcePlatform = p.SourcePlatform
		existing.UpdatedAt = now

		if updateErr := s.productRepo.Update(ctx, existing); updateErr != nil {
			slog.Error("商品の更新でエラー",
				"url", p.URL,
				"error", updateErr,
			)
			return created, updated, fmt.Errorf("商品の更新に失敗: %w", updateErr)
		}
		updated++
	}

	slog.Info("商品UPSERT完了",
		"category", category,
		"created", created,
		"updated", updated,
	)

	return created, updated, nil
}

// CategoryForQuery は検索クエリからカタログ用のカテゴリ名を導出する。
func CategoryForQuery(keywords string) string {
	return source.CategoryFor(keywords)
}
