package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/dropscout/internal/middleware"
	"github.com/hitoshi/dropscout/internal/model"
)

// stubFilterService は受け取ったリクエストを記録し、固定レスポンスを返す。
type stubFilterService struct {
	gotReq model.FilterRequest
	resp   model.FilterResponse
	calls  int
}

func (s *stubFilterService) Run(_ context.Context, req model.FilterRequest) model.FilterResponse {
	s.calls++
	s.gotReq = req
	return s.resp
}

func validFilterBody() string {
	return `{
		"keywords": "usb hub",
		"min_price": 5.0,
		"max_price": 20.0,
		"currency": "USD",
		"max_shipping_days": 15,
		"limit": 10
	}`
}

func TestFilterHandler_Filter_Success(t *testing.T) {
	svc := &stubFilterService{
		resp: model.FilterResponse{
			Results: []model.AcceptedProduct{
				{URL: "https://www.aliexpress.com/item/1.html", Title: "USB Hub 4 Port", Price: 9.99},
			},
			Discarded: []model.DiscardRecord{},
			Meta:      model.FilterMeta{Returned: 1, TimeMS: 42},
		},
	}
	h := NewFilterHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/products/filter", strings.NewReader(validFilterBody()))
	w := httptest.NewRecorder()

	h.Filter(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}

	var body model.FilterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Results) != 1 {
		t.Errorf("results = %d, want 1", len(body.Results))
	}
	if body.Meta.Returned != 1 {
		t.Errorf("meta.returned = %d, want 1", body.Meta.Returned)
	}

	if svc.gotReq.Keywords != "usb hub" {
		t.Errorf("pipeline got keywords %q", svc.gotReq.Keywords)
	}
	if svc.gotReq.Limit != 10 {
		t.Errorf("pipeline got limit %d", svc.gotReq.Limit)
	}
}

func TestFilterHandler_Filter_MalformedJSON(t *testing.T) {
	svc := &stubFilterService{}
	h := NewFilterHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/products/filter", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Filter(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
	if svc.calls != 0 {
		t.Error("解析に失敗したリクエストでパイプラインを実行してはならない")
	}
}

// TestFilterHandler_Filter_ValidationErrors は境界バリデーション違反が400と対応コードで拒否されることを検証する。
func TestFilterHandler_Filter_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			"キーワード未指定",
			`{"min_price": 5, "max_price": 20, "currency": "USD", "max_shipping_days": 15, "limit": 10}`,
			model.ErrCodeMissingKeywords,
		},
		{
			"無効な価格帯",
			`{"keywords": "hub", "min_price": 20, "max_price": 5, "currency": "USD", "max_shipping_days": 15, "limit": 10}`,
			model.ErrCodeInvalidPriceRange,
		},
		{
			"無効な通貨",
			`{"keywords": "hub", "min_price": 5, "max_price": 20, "currency": "GBP", "max_shipping_days": 15, "limit": 10}`,
			model.ErrCodeInvalidCurrency,
		},
		{
			"配送日数の上限超過",
			`{"keywords": "hub", "min_price": 5, "max_price": 20, "currency": "USD", "max_shipping_days": 61, "limit": 10}`,
			model.ErrCodeInvalidShippingDays,
		},
		{
			"取得件数の上限超過",
			`{"keywords": "hub", "min_price": 5, "max_price": 20, "currency": "USD", "max_shipping_days": 15, "limit": 51}`,
			model.ErrCodeInvalidLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFilterService{}
			h := NewFilterHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/products/filter", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Filter(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}

			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Category != "validation" {
				t.Errorf("category = %q, want validation", body.Category)
			}
			if svc.calls != 0 {
				t.Error("バリデーション違反でパイプラインを実行してはならない")
			}
		})
	}
}
