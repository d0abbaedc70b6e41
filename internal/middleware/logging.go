// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation string `json:"operation"`
	ChapterID string `json:"chapter_id,omitempty"`
	PageCount int    `json:"page_count"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// 監査ログの結果値
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILED"
)

// NewAuditLog は現在時刻で監査ログを組み立てる。
func NewAuditLog(operation, chapterID string, pageCount int, result string) AuditLog {
	return AuditLog{
		Operation: operation,
		ChapterID: chapterID,
		PageCount: pageCount,
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteAuditLog は監査ログを出力する。
// 復号結果や鍵素材は記録しない。
func WriteAuditLog(ctx context.Context, operation string, chapterID string, pageCount int, result string) {
	entry := NewAuditLog(operation, chapterID, pageCount, result)
	level := slog.LevelInfo
	if result != ResultSuccess {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "drm operation completed",
		"operation", entry.Operation,
		"chapter_id", entry.ChapterID,
		"page_count", entry.PageCount,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
	)
}
