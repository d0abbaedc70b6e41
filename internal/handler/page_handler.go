// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"page-drm-service/internal/domain"
	"page-drm-service/internal/layout"
	"page-drm-service/internal/middleware"
	"page-drm-service/internal/usecase"
	"page-drm-service/pkg/httputil"
)

// 単体操作のリクエストボディ上限
const maxRequestBytes = 64 << 10

// PageHandler はページ復号APIのハンドラを提供する。
type PageHandler struct {
	service          *usecase.PageService
	maxManifestBytes int64
}

// NewPageHandler は新しいPageHandlerを生成する。
func NewPageHandler(service *usecase.PageService, maxManifestBytes int64) *PageHandler {
	return &PageHandler{
		service:          service,
		maxManifestBytes: maxManifestBytes,
	}
}

// DecryptRequest は単体復号のリクエスト形式。
type DecryptRequest struct {
	WrappedKey string `json:"wrapped_key"`
	Payload    string `json:"payload"`
}

// DecryptResponse は単体復号のレスポンス形式。
type DecryptResponse struct {
	Plaintext string `json:"plaintext"`
}

// LayoutRequest はレイアウトデコードのリクエスト形式。
type LayoutRequest struct {
	DrmData string `json:"drm_data"`
}

// PageResponse はデコード済みページのレスポンス形式。
type PageResponse struct {
	Index     int               `json:"index"`
	URL       string            `json:"url"`
	Blocks    []domain.RowBlock `json:"blocks"`
	Regions   []domain.Region   `json:"regions"`
	CreatedAt string            `json:"created_at,omitempty"`
}

// ChapterResponse はチャプターのページ一覧のレスポンス形式。
type ChapterResponse struct {
	ChapterID string         `json:"chapter_id"`
	Pages     []PageResponse `json:"pages"`
}

func toChapterResponse(chapterID string, pages []*domain.Page) ChapterResponse {
	resp := ChapterResponse{
		ChapterID: chapterID,
		Pages:     make([]PageResponse, len(pages)),
	}
	for i, p := range pages {
		blocks := p.Blocks
		if blocks == nil {
			blocks = []domain.RowBlock{}
		}
		pr := PageResponse{
			Index:   p.Index,
			URL:     p.URL,
			Blocks:  blocks,
			Regions: layout.Regions(blocks),
		}
		if !p.CreatedAt.IsZero() {
			pr.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339)
		}
		resp.Pages[i] = pr
	}
	return resp
}

// Decrypt はラップ済み鍵でペイロードを復号する。
func (h *PageHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req DecryptRequest
	if err := httputil.DecodeJSON(w, r, maxRequestBytes, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.WrappedKey == "" || req.Payload == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "wrapped_key and payload are required")
		return
	}

	plain, err := h.service.DecryptURL(r.Context(), req.WrappedKey, req.Payload)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DECRYPT", "", 0, middleware.ResultFailure)
		writeError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DECRYPT", "", 1, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, DecryptResponse{Plaintext: plain})
}

// DecodeLayout はDRMデータをデコードする。
func (h *PageHandler) DecodeLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if err := httputil.DecodeJSON(w, r, maxRequestBytes, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.DrmData == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "drm_data is required")
		return
	}

	result, err := h.service.DecodeLayout(r.Context(), req.DrmData)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DECODE_LAYOUT", "", 0, middleware.ResultFailure)
		writeError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DECODE_LAYOUT", "", 1, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, result)
}

// DecodeChapter はマニフェストからチャプターの全ページを復号して保存する。
func (h *PageHandler) DecodeChapter(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "chapter_id")
	if err := domain.ValidateChapterID(chapterID); err != nil {
		writeError(w, r, err)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxManifestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "MANIFEST_TOO_LARGE", "manifest exceeds the size limit")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		return
	}

	pages, err := h.service.DecodeChapter(r.Context(), chapterID, raw)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DECODE_CHAPTER", chapterID, 0, middleware.ResultFailure)
		writeError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DECODE_CHAPTER", chapterID, len(pages), middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toChapterResponse(chapterID, pages))
}

// GetChapterPages は保存済みのページ一覧を返す。
func (h *PageHandler) GetChapterPages(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "chapter_id")
	if err := domain.ValidateChapterID(chapterID); err != nil {
		writeError(w, r, err)
		return
	}

	pages, err := h.service.GetChapterPages(r.Context(), chapterID)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GET_CHAPTER_PAGES", chapterID, 0, middleware.ResultFailure)
		writeError(w, r, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_CHAPTER_PAGES", chapterID, len(pages), middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toChapterResponse(chapterID, pages))
}

// Health はヘルスチェック。
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
