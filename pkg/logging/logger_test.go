package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portalslayer/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run's log must be rotated to .old
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	prev := slog.Default()
	defer slog.SetDefault(prev)

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("info line", "component", "test")
	slog.Debug("debug line", "component", "test")
	RequestLogger.Info("Request Processed", "path", "/health")
	cleanup()

	if _, err := os.Stat(serverLog + ".old"); err != nil {
		t.Errorf("previous server log not rotated: %v", err)
	}
	content, err := os.ReadFile(serverLog)
	if err != nil {
		t.Fatalf("server log missing: %v", err)
	}
	if !strings.Contains(string(content), "debug line") {
		t.Errorf("debug line not written to server log: %q", content)
	}
	if strings.Contains(Capture.LastLine(), "debug line") {
		t.Error("capture must skip DEBUG records")
	}
	reqContent, _ := os.ReadFile(requestLog)
	if !strings.Contains(string(reqContent), "/health") {
		t.Errorf("request log missing entry: %q", reqContent)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	info := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	m := &multiHandler{handlers: []slog.Handler{info, errOnly}}

	ctx := context.Background()
	if m.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug should be disabled")
	}
	if !m.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be enabled by the first handler")
	}
	if _, ok := m.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*multiHandler); !ok {
		t.Error("WithAttrs must keep the multi handler")
	}
}
