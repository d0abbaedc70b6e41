package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "LOG_LEVEL", "OTEL_ENABLED", "OTEL_SAMPLING_RATE", "IMAGE_BASE_URL", "DECODE_WORKERS", "MAX_MANIFEST_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("want port 8080, got %s", cfg.Port)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("want log level INFO, got %s", cfg.LogLevel)
	}
	if cfg.OtelEnabled {
		t.Error("want otel disabled by default")
	}
	if cfg.OtelSamplingRate != 1.0 {
		t.Errorf("want sampling rate 1.0, got %v", cfg.OtelSamplingRate)
	}
	if cfg.ImageBaseURL != "https://p21-ad-sg.ibyteimg.com/obj/" {
		t.Errorf("unexpected image base URL: %s", cfg.ImageBaseURL)
	}
	if cfg.DecodeWorkers != 8 {
		t.Errorf("want 8 decode workers, got %d", cfg.DecodeWorkers)
	}
	if cfg.MaxManifestBytes != 4<<20 {
		t.Errorf("want max manifest bytes %d, got %d", 4<<20, cfg.MaxManifestBytes)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	t.Setenv("DECODE_WORKERS", "2")
	t.Setenv("IMAGE_BASE_URL", "https://cdn.example.com/")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("want port 9090, got %s", cfg.Port)
	}
	if !cfg.OtelEnabled {
		t.Error("want otel enabled")
	}
	if cfg.OtelSamplingRate != 0.25 {
		t.Errorf("want sampling rate 0.25, got %v", cfg.OtelSamplingRate)
	}
	if cfg.DecodeWorkers != 2 {
		t.Errorf("want 2 decode workers, got %d", cfg.DecodeWorkers)
	}
	if cfg.ImageBaseURL != "https://cdn.example.com/" {
		t.Errorf("want https://cdn.example.com/, got %s", cfg.ImageBaseURL)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DECODE_WORKERS", "-3")
	t.Setenv("OTEL_SAMPLING_RATE", "2")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()

	if cfg.DecodeWorkers != 8 {
		t.Errorf("want 8 decode workers, got %d", cfg.DecodeWorkers)
	}
	if cfg.OtelSamplingRate != 1.0 {
		t.Errorf("want sampling rate 1.0, got %v", cfg.OtelSamplingRate)
	}
	if cfg.OtelEnabled {
		t.Error("want otel disabled for an unparsable value")
	}
}

func TestConfig_DatabaseDSN(t *testing.T) {
	cfg := &Config{}
	if got := cfg.DatabaseDSN(); got != InMemoryDatabaseURL {
		t.Errorf("want in-memory DSN, got %s", got)
	}

	cfg.DatabaseURL = "user:pass@tcp(db:3306)/drm?parseTime=true"
	if got := cfg.DatabaseDSN(); got != cfg.DatabaseURL {
		t.Errorf("want %s, got %s", cfg.DatabaseURL, got)
	}
}
