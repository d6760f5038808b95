package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"security-gateway/internal/logger"
	"security-gateway/middleware/security"
	"security-gateway/middleware/security/domain"
	"security-gateway/middleware/security/infra"
)

// Example: the middlewares mounted directly on an application router, no
// proxy. Identity comes from a toy X-User-Id header standing in for a real
// session layer.
func main() {
	log, _, err := logger.Init(logger.Config{Level: "debug"})
	if err != nil {
		slog.Error("logger init failed", "error", err)
		os.Exit(1)
	}

	stats := infra.NewMemoryStatsStore()
	shield, err := security.New(security.Options{
		Store:              infra.NewMemoryStore(),
		Stats:              stats,
		Logger:             log,
		TrustXForwardedFor: trustXFF(),
	})
	if err != nil {
		log.Error("shield init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go shield.Sweeper().Run(ctx, infra.NewTicker(5*time.Minute))

	r := chi.NewRouter()
	r.Use(security.SecurityHeaders(security.HeaderOptions{}))
	r.Use(shield.Guard())
	r.Use(security.CORS(security.CORSOptions{AllowedOrigins: []string{"http://localhost:3000"}}))
	r.Use(security.BodyLimit(0))
	r.Use(security.IdentityFromHeaders("X-User-Id", ""))

	r.With(shield.Profile(domain.ScopeAuth)).Post("/api/auth/login", writeJSON(map[string]any{"success": true}))
	r.With(shield.Profile(domain.ScopeSensitive)).Delete("/api/admin/orders/{id}", writeJSON(map[string]any{"success": true}))
	r.With(shield.Profile(domain.ScopeAPI)).Get("/api/orders", writeJSON(map[string]any{"success": true, "orders": []any{}}))
	r.With(shield.Profile(domain.ScopePublic)).Get("/api/orders/lookup/{number}", writeJSON(map[string]any{"success": true, "status": "in_repair"}))

	// operator view; keep it off the public listener in a real deployment
	r.Get("/debug/security", func(w http.ResponseWriter, r *http.Request) {
		blocked, err := shield.Reputation().Blocked(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(map[string]any{
			"total":   stats.Total(),
			"byCode":  stats.ByCode(),
			"byScope": stats.ByScope(),
			"blocked": blocked,
		})(w, r)
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(body)
	}
}

// trustXFF reads TRUST_XFF. X-Forwarded-For is client-controlled on a
// directly exposed listener; enable it only behind a proxy that overwrites
// the header.
func trustXFF() bool {
	v, _ := strconv.ParseBool(os.Getenv("TRUST_XFF"))
	return v
}
