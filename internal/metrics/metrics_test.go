package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordScrapeSuccess_IncrementsCounter はスクレイプ成功カウンタが増加することを検証する。
func TestRecordScrapeSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeSuccess("scraped")
	c.RecordScrapeSuccess("scraped")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_scrape_success_total" {
			found = true
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric, got %d", len(mf.GetMetric()))
			}
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("scrape_success_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("dropscout_scrape_success_total metric not found")
	}
}

// TestRecordScrapeFailure_IncrementsCounter はスクレイプ失敗カウンタが増加することを検証する。
func TestRecordScrapeFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScrapeFailure("scraped", "timeout")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_scrape_fail_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 1 {
				t.Errorf("scrape_fail_total = %v, want 1", val)
			}
		}
	}
	if !found {
		t.Error("dropscout_scrape_fail_total metric not found")
	}
}

// TestRecordProbeStatus_IncrementsCounterWithLabel はプローブステータスカウンタがラベル付きで増加することを検証する。
func TestRecordProbeStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProbeStatus(200)
	c.RecordProbeStatus(200)
	c.RecordProbeStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_probe_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("probe_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("probe_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("dropscout_probe_status_total metric not found")
	}
}

// TestRecordPipelineLatency_ObservesHistogram はパイプラインレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordPipelineLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPipelineLatency(100 * time.Millisecond)
	c.RecordPipelineLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_pipeline_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("dropscout_pipeline_latency_seconds metric not found")
	}
}

// TestRecordProductsUpserted_IncrementsCounter は商品アップサートカウンタが増加することを検証する。
func TestRecordProductsUpserted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProductsUpserted(10)
	c.RecordProductsUpserted(5)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_products_upserted_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 15 {
				t.Errorf("products_upserted_total = %v, want 15", val)
			}
		}
	}
	if !found {
		t.Error("dropscout_products_upserted_total metric not found")
	}
}

// TestRecordJobFinished_IncrementsCounterWithStatus はジョブ終了カウンタがステータス別に増加することを検証する。
func TestRecordJobFinished_IncrementsCounterWithStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordJobFinished("SUCCESS")
	c.RecordJobFinished("SUCCESS")
	c.RecordJobFinished("FAILURE")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_jobs_finished_total" {
			found = true
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "SUCCESS":
					if val != 2 {
						t.Errorf("jobs_finished_total{status=SUCCESS} = %v, want 2", val)
					}
				case "FAILURE":
					if val != 1 {
						t.Errorf("jobs_finished_total{status=FAILURE} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("dropscout_jobs_finished_total metric not found")
	}
}

// TestRecordFallback_IncrementsCounter はフォールバックカウンタが増加することを検証する。
func TestRecordFallback_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFallback()
	c.RecordFallback()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "dropscout_fallback_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("fallback_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("dropscout_fallback_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordScrapeSuccess("scraped")
	c.RecordScrapeFailure("scraped", "error")
	c.RecordProbeStatus(200)
	c.RecordPipelineLatency(500 * time.Millisecond)
	c.RecordProductsUpserted(3)
	c.RecordCandidatesAccepted(5)
	c.RecordCandidatesDiscarded(2)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"dropscout_scrape_success_total",
		"dropscout_scrape_fail_total",
		"dropscout_probe_status_total",
		"dropscout_pipeline_latency_seconds",
		"dropscout_products_upserted_total",
		"dropscout_candidates_accepted_total",
		"dropscout_candidates_discarded_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordScrapeSuccess("scraped")
	c2.RecordScrapeSuccess("synthetic")
	c2.RecordScrapeSuccess("synthetic")

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "dropscout_scrape_success_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "dropscout_scrape_success_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 scrape_success = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 scrape_success = %v, want 2", val2)
	}
}
