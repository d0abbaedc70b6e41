package infra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"page-drm-service/config"
)

// redactedKeys はログに値を出してはならない属性キー。
// ラップ済み鍵・暗号化ペイロード・データ鍵・DRM記述子はいずれも復号の入力になる。
var redactedKeys = map[string]bool{
	"wrapped_key": true,
	"payload":     true,
	"data_key":    true,
	"drm_data":    true,
}

const redacted = "[REDACTED]"

// TraceHandler はOTelのスパン情報をDRM操作ログに付与するslogハンドラ。
// Cloud Loggingのプロジェクトが設定されている場合は、トレースとログを紐付けるフィールドも付与する。
type TraceHandler struct {
	next         slog.Handler
	cloudProject string
	otelEnabled  bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(next slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		next:         next,
		cloudProject: cfg.GoogleCloudProject,
		otelEnabled:  cfg.OtelEnabled,
	}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle はスパンが有効な場合にトレース属性を付けてレコードを渡す。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.otelEnabled {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r.AddAttrs(h.traceAttrs(sc)...)
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *TraceHandler) traceAttrs(sc trace.SpanContext) []slog.Attr {
	traceID, spanID := sc.TraceID().String(), sc.SpanID().String()
	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	if h.cloudProject != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", "projects/"+h.cloudProject+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(h.next.WithAttrs(attrs))
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return h.with(h.next.WithGroup(name))
}

func (h *TraceHandler) with(next slog.Handler) *TraceHandler {
	clone := *h
	clone.next = next
	return &clone
}

// redactSecrets は鍵素材や暗号文を含む属性の値を伏せる。
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[a.Key] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// ParseLevel はLOG_LEVELの値をslogのレベルに変換する。未知の値はINFOとして扱う。
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger はトレース情報付きのグローバルロガーを標準出力に設定する。
func SetupLogger(cfg *config.Config, level slog.Level) {
	SetupLoggerTo(os.Stdout, cfg, level)
}

// SetupLoggerTo は出力先を指定してグローバルロガーを設定する。
// 全ての行にサービス名とバージョンを付け、鍵素材の属性は伏せる。
func SetupLoggerTo(w io.Writer, cfg *config.Config, level slog.Level) {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	})
	logger := slog.New(NewTraceHandler(jsonHandler, cfg)).With(
		slog.String("service", cfg.OtelServiceName),
		slog.String("version", Version),
	)
	slog.SetDefault(logger)
}
