package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger はデータベースの死活確認インターフェース。*sql.DBを受け付ける。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health はデータベース接続を含むヘルスチェックを行う。
// GET /health
// データベースに到達できない場合は503を返す。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if err := h.db.PingContext(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Database: "ok",
	})
}
