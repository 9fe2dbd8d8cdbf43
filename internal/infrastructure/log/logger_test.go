package log

import (
	"log/slog"
	"os"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // 默认值
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")

	cfg := NewConfigFromEnv()
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
}

func TestNewConfigFromEnv_Development(t *testing.T) {
	t.Setenv("ENV", "development")
	os.Unsetenv("LOG_LEVEL")

	cfg := NewConfigFromEnv()
	if cfg.Level != "debug" {
		t.Errorf("开发环境应强制 debug 级别，got %q", cfg.Level)
	}
	if !cfg.AddSource {
		t.Error("开发环境应添加源文件信息")
	}
}

func TestNewModuleLogger(t *testing.T) {
	Init(&Config{Level: "info", Format: "json"})

	logger := NewModuleLogger("cache", "store")
	if logger == nil {
		t.Fatal("NewModuleLogger 不应返回 nil")
	}
}
