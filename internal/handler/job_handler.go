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

// defaultJobsPerPage はジョブ一覧の1回の取得件数（デフォルト）。
const defaultJobsPerPage = 20

// JobRegistryInterface はジョブハンドラーが必要とするレジストリのインターフェース。
type JobRegistryInterface interface {
	// Submit は新しいジョブを投入する。
	Submit(ctx context.Context, query, source string, pages int) (*model.ScrapeJob, *model.APIError)
	// Get は指定IDのジョブを取得する。
	Get(ctx context.Context, id string) (*model.ScrapeJob, *model.APIError)
	// List はジョブ一覧と総数を取得する。
	List(ctx context.Context, limit, offset int) ([]*model.ScrapeJob, int, *model.APIError)
	// Cancel は指定IDのジョブを取り消す。
	Cancel(ctx context.Context, id string) (*model.ScrapeJob, *model.APIError)
}

// JobHandler はスクレイプジョブ管理のHTTPハンドラー。
type JobHandler struct {
	registry JobRegistryInterface
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(registry JobRegistryInterface) *JobHandler {
	return &JobHandler{registry: registry}
}

// --- リクエスト/レスポンス型 ---

// jobSubmitRequest はジョブ投入リクエストのボディ。
type jobSubmitRequest struct {
	Query    string `json:"query"`
	Source   string `json:"source,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
}

// jobSubmitResponse はジョブ投入のレスポンス。
type jobSubmitResponse struct {
	TaskID string `json:"task_id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// jobResponse はジョブレコードのレスポンス。
type jobResponse struct {
	ID             string            `json:"id"`
	TaskID         string            `json:"task_id,omitempty"`
	Query          string            `json:"query"`
	Source         string            `json:"source"`
	RequestedPages int               `json:"requested_pages"`
	ReturnedItems  int               `json:"returned_items"`
	CreatedItems   int               `json:"created_items"`
	Progress       float64           `json:"progress"`
	Status         model.JobStatus   `json:"status"`
	Error          string            `json:"error,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// jobListResponse はジョブ一覧のレスポンス。
type jobListResponse struct {
	Count   int           `json:"count"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	Results []jobResponse `json:"results"`
}

// jobCancelResponse はジョブ取り消しのレスポンス。
type jobCancelResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
}

// toJobResponse はジョブレコードをレスポンス型へ変換する。
func toJobResponse(job *model.ScrapeJob) jobResponse {
	return jobResponse{
		ID:             job.ID,
		TaskID:         job.TaskID,
		Query:          job.Query,
		Source:         job.Source,
		RequestedPages: job.RequestedPages,
		ReturnedItems:  job.ReturnedItems,
		CreatedItems:   job.CreatedItems,
		Progress:       job.Progress,
		Status:         job.Status,
		Error:          job.Error,
		Meta:           job.Meta,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
		CreatedAt:      job.CreatedAt,
	}
}

// statusCodeFor はAPIErrorのコードからHTTPステータスコードを導出する。
func statusCodeFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeJobNotFound:
		return http.StatusNotFound
	case model.ErrCodeMissingQuery, model.ErrCodeInvalidRequest, model.ErrCodeJobNotCancelable:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Submit は新しいスクレイプジョブを投入する。
// POST /api/scrape/jobs
// queryは必須。sourceのデフォルトは"scraped"、max_pagesのデフォルトは1。
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req jobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	job, apiErr := h.registry.Submit(r.Context(), req.Query, req.Source, req.MaxPages)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, statusCodeFor(apiErr), apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(jobSubmitResponse{
		TaskID: job.TaskID,
		JobID:  job.ID,
		Status: "submitted",
	})
}

// Get は指定IDのジョブ詳細を取得する。
// GET /api/scrape/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, apiErr := h.registry.Get(r.Context(), id)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, statusCodeFor(apiErr), apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toJobResponse(job))
}

// List はジョブ一覧を取得する。
// GET /api/scrape/jobs?limit=&offset=
// created_at降順で返す。limitのデフォルトは20。
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobsPerPage
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

	jobs, count, apiErr := h.registry.List(r.Context(), limit, offset)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, statusCodeFor(apiErr), apiErr)
		return
	}

	results := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, toJobResponse(job))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobListResponse{
		Count:   count,
		Limit:   limit,
		Offset:  offset,
		Results: results,
	})
}

// Cancel は指定IDのジョブを取り消す。
// POST /api/scrape/jobs/{id}/cancel
// 404: 未知のID、400: 既に終端状態、500: 取り消し伝達の失敗。
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, apiErr := h.registry.Cancel(r.Context(), id)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, statusCodeFor(apiErr), apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobCancelResponse{
		Status: "revoked",
		TaskID: job.TaskID,
	})
}
