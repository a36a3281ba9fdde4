// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/dropscout/internal/middleware"
	"github.com/hitoshi/dropscout/internal/model"
)

// FilterServiceInterface はフィルターハンドラーが必要とするパイプラインのインターフェース。
type FilterServiceInterface interface {
	// Run はフィルターリクエストを実行する。上流の失敗ではエラーを返さない。
	Run(ctx context.Context, req model.FilterRequest) model.FilterResponse
}

// FilterHandler は商品フィルターのHTTPハンドラー。
type FilterHandler struct {
	pipeline FilterServiceInterface
}

// NewFilterHandler はFilterHandlerを生成する。
func NewFilterHandler(pipeline FilterServiceInterface) *FilterHandler {
	return &FilterHandler{pipeline: pipeline}
}

// Filter は商品フィルターリクエストを実行する。
// POST /api/products/filter
// 境界バリデーション違反は400とエラーコードで拒否する。
func (h *FilterHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req model.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if apiErr := req.Validate(); apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	resp := h.pipeline.Run(r.Context(), req)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(resp)
}
