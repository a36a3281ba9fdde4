package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dropscout/internal/middleware"
	"github.com/hitoshi/dropscout/internal/model"
)

// defaultProductsPerPage は商品一覧の1回の取得件数（デフォルト）。
const defaultProductsPerPage = 20

// ProductReader は商品ハンドラーが必要とするカタログの読み取りインターフェース。
// repository.ProductRepositoryがこれを満たす。
type ProductReader interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)
	// ListRecent は作成日時の降順で商品一覧を取得する。
	ListRecent(ctx context.Context, limit, offset int) ([]*model.Product, error)
	// Count はカタログの商品総数を返す。
	Count(ctx context.Context) (int, error)
}

// ProductHandler は蓄積された商品カタログの閲覧用HTTPハンドラー。
// ジョブ実行でアップサートされた商品を一覧・個別参照する。
type ProductHandler struct {
	products ProductReader
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(products ProductReader) *ProductHandler {
	return &ProductHandler{products: products}
}

// productResponse は商品レコードのレスポンス。
type productResponse struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Price          float64        `json:"price"`
	Currency       model.Currency `json:"currency"`
	URL            string         `json:"url"`
	ImageURL       string         `json:"image_url,omitempty"`
	ShippingDays   *int           `json:"shipping_days,omitempty"`
	Category       string         `json:"category,omitempty"`
	Rating         *float64       `json:"rating,omitempty"`
	SourcePlatform string         `json:"source_platform"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// productListResponse は商品一覧のレスポンス。
type productListResponse struct {
	Count   int               `json:"count"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	Results []productResponse `json:"results"`
}

// toProductResponse は商品レコードをレスポンス型へ変換する。
func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		Title:          p.Title,
		Price:          p.Price,
		Currency:       p.Currency,
		URL:            p.URL,
		ImageURL:       p.ImageURL,
		ShippingDays:   p.ShippingDays,
		Category:       p.Category,
		Rating:         p.Rating,
		SourcePlatform: p.SourcePlatform,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// List はカタログの商品一覧を取得する。
// GET /api/products?limit=&offset=
// created_at降順で返す。limitのデフォルトは20。
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultProductsPerPage
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	products, err := h.products.ListRecent(r.Context(), limit, offset)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	count, err := h.products.Count(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	results := make([]productResponse, 0, len(products))
	for _, p := range products {
		results = append(results, toProductResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productListResponse{
		Count:   count,
		Limit:   limit,
		Offset:  offset,
		Results: results,
	})
}

// Get は指定IDの商品を取得する。
// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.products.FindByID(r.Context(), id)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	if product == nil {
		apiErr := model.NewProductNotFoundError(id)
		middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProductResponse(product))
}
