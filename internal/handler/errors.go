package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"page-drm-service/internal/domain"
	"page-drm-service/pkg/httputil"
)

// errorMapping はドメインエラーとHTTPレスポンスの対応。
// 上から順にerrors.Isで照合する。
var errorMappings = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{domain.ErrInvalidChapterID, http.StatusBadRequest, "INVALID_CHAPTER_ID", "invalid chapter ID format"},
	{domain.ErrInvalidManifest, http.StatusBadRequest, "INVALID_MANIFEST", "invalid chapter manifest"},
	{domain.ErrEmptyChapter, http.StatusUnprocessableEntity, "EMPTY_CHAPTER", "chapter manifest has no pages"},
	{domain.ErrChapterNotFound, http.StatusNotFound, "CHAPTER_NOT_FOUND", "no decoded pages for this chapter"},
	{domain.ErrAuthenticationFailure, http.StatusUnprocessableEntity, "AUTHENTICATION_FAILURE", "ciphertext authentication failed"},
	{domain.ErrInvalidKeyMaterial, http.StatusUnprocessableEntity, "INVALID_KEY_MATERIAL", "unwrapped key has an invalid length"},
	{domain.ErrBadMagic, http.StatusUnprocessableEntity, "BAD_MAGIC", "DRM data has an unknown format"},
	{domain.ErrIntegerParse, http.StatusUnprocessableEntity, "INTEGER_PARSE_FAILURE", "DRM data contains an invalid number"},
	{domain.ErrMalformedEncoding, http.StatusBadRequest, "MALFORMED_ENCODING", "input is not valid base64 or UTF-8"},
	{domain.ErrTruncatedInput, http.StatusBadRequest, "TRUNCATED_INPUT", "input is too short"},
}

// writeError はエラーの種類に応じたエラーレスポンスを返す。
// 対応するドメインエラーが無い場合は500とし、詳細はログにのみ出力する。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httputil.Error(w, m.status, m.code, m.message)
			return
		}
	}
	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
