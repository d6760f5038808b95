package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"security-gateway/internal/config"
	"security-gateway/internal/logger"
	"security-gateway/middleware/security/infra"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Server.UpstreamURL == "" {
				return errors.New("server.upstream_url is required")
			}
			log, closeLog, err := logger.Init(logger.Config{
				Level:      cfg.Logger.Level,
				Format:     cfg.Logger.Format,
				OutputPath: cfg.Logger.OutputPath,
			})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = closeLog() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	target, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream url: %w", err)
	}

	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	proxy := newProxy(target, logger.WithComponent("proxy"))
	sweeper := deps.shield.Sweeper()
	go sweeper.Run(ctx, infra.NewTicker(cfg.Security.Cleanup.Interval))

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           newRouter(cfg, deps.shield, proxy),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", "addr", cfg.Server.ListenAddr, "upstream", target.String())
	log.Info("security",
		"store", cfg.Security.Store,
		"failure_policy", cfg.Security.FailurePolicy,
		"trust_xff", cfg.Security.TrustXForwardedFor,
		"max_body_bytes", cfg.Security.MaxBodyBytes,
		"burst_max", cfg.Security.Burst.Max,
		"burst_window", cfg.Security.Burst.Window,
		"suspicion_threshold", cfg.Security.Reputation.Threshold,
	)
	log.Info("concurrency", "max", cfg.Concurrency.Max, "acquire_timeout", cfg.Concurrency.AcquireTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newProxy(target *url.URL, log *slog.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ModifyResponse = func(resp *http.Response) error {
		resp.Header.Del("X-Powered-By")
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("proxy error", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}
