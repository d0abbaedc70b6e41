// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
)

// Config はアプリケーション設定を表す。
// マスター鍵とシフト量は設定ではなくバイナリに埋め込まれた定数であり、ここには含めない。
type Config struct {
	Port               string
	DatabaseURL        string
	AutoMigrate        bool
	GoogleCloudProject string
	LogLevel           string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelInsecure     bool
	OtelServiceName  string
	OtelSamplingRate float64

	ImageBaseURL     string
	DecodeWorkers    int
	MaxManifestBytes int64
}

// InMemoryDatabaseURL はDATABASE_URL未設定時に使う共有インメモリSQLiteのDSN。
const InMemoryDatabaseURL = "file:page-drm?mode=memory&cache=shared"

// DatabaseDSN は接続先DSNを返す。未設定の場合はインメモリSQLiteとする。
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL == "" {
		return InMemoryDatabaseURL
	}
	return c.DatabaseURL
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AutoMigrate:        getEnvBool("AUTO_MIGRATE", false),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelInsecure:     getEnvBool("OTEL_INSECURE", false),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "page-drm-service"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),

		ImageBaseURL:     getEnv("IMAGE_BASE_URL", "https://p21-ad-sg.ibyteimg.com/obj/"),
		DecodeWorkers:    getEnvInt("DECODE_WORKERS", 8),
		MaxManifestBytes: int64(getEnvInt("MAX_MANIFEST_BYTES", 4<<20)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}
