// Package server exposes the operational HTTP surface: health, status and
// Prometheus metrics. It carries no chat functionality.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/stammer/telemetry"
)

// Status is the payload of GET /status.
type Status struct {
	Uptime   string   `json:"uptime"`
	Channels []string `json:"channels"`
	Tracing  bool     `json:"tracing"`
}

// New builds the ops mux. channels is the list of joined chat channels,
// reported on /status.
func New(db *sql.DB, channels []string) http.Handler {
	started := time.Now()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Status{
			Uptime:   time.Since(started).Round(time.Second).String(),
			Channels: channels,
			Tracing:  telemetry.IsTracingEnabled(),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return withCorrelation(mux)
}

// withCorrelation propagates an inbound X-Correlation-Id header (or none)
// into the request context so handler logs line up with callers.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Correlation-Id"); id != "" {
			r = r.WithContext(telemetry.WithCorrelation(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves the ops endpoints until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, db *sql.DB, addr string, channels []string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(db, channels),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", slog.Any("err", err))
		}
	}()
	slog.Info("ops server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
