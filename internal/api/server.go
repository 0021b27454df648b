package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"portalslayer/pkg/version"
)

// NewServer creates and configures the HTTP server.
// ws and metrics may be nil when the host provider or metrics are disabled.
func NewServer(addr string, tags *TagsHandler, mode *ModeHandler, settings *SettingsHandler, sel *SelectionHandler, ws http.Handler, metrics http.Handler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health, version and log
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log", handleLatestLog)

	// 2. Tag endpoints
	mux.HandleFunc("GET /api/tags", tags.HandleList)
	mux.HandleFunc("GET /api/tags/geojson", tags.HandleGeoJSON)
	mux.HandleFunc("GET /api/tags/{id}", tags.HandleGet)
	mux.HandleFunc("PUT /api/tags/{id}", tags.HandlePut)
	mux.HandleFunc("DELETE /api/tags/{id}", tags.HandleDelete)
	mux.HandleFunc("DELETE /api/tags", tags.HandleClear)
	mux.HandleFunc("POST /api/tags/restore", tags.HandleRestore)

	// 3. Mode endpoints
	mux.HandleFunc("GET /api/mode", mode.HandleGet)
	mux.HandleFunc("PUT /api/mode", mode.HandleSet)
	mux.HandleFunc("POST /api/mode/toggle", mode.HandleToggle)
	mux.HandleFunc("GET /api/status", mode.HandleStatus)

	// 4. Settings endpoints
	mux.HandleFunc("GET /api/settings", settings.HandleGet)
	mux.HandleFunc("PUT /api/settings", settings.HandleSet)

	// 5. Selection injection
	mux.HandleFunc("POST /api/selection", sel.Handle)

	// 6. Host websocket and metrics
	if ws != nil {
		mux.Handle("GET /api/ws", ws)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// 7. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: /api/ws connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
