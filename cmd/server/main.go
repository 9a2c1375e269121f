package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"zohobooks-mcp/server/internal/auth"
	"zohobooks-mcp/server/internal/broker"
	"zohobooks-mcp/server/internal/config"
	"zohobooks-mcp/server/internal/db"
	"zohobooks-mcp/server/internal/mcp"
	"zohobooks-mcp/server/internal/middleware"
	"zohobooks-mcp/server/internal/modules"
	"zohobooks-mcp/server/internal/modules/zoho_books"
	"zohobooks-mcp/server/internal/observability"
	"zohobooks-mcp/server/pkg/zohobooksapi"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := observability.InitLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := observability.Logger()
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	// Initialize observability (Loki)
	observability.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := broker.NewTokenBroker(cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken,
		broker.WithTokenURL(cfg.AccountsURL),
		broker.WithTokenCache(cfg.CacheTokens),
	)
	session, err := zohobooksapi.Open(ctx, zohobooksapi.NewClient(cfg.APIBaseURL, nil), tokens, cfg.OrganizationID)
	if err != nil {
		log.Fatal("failed to open Zoho Books session", zap.Error(err))
	}
	modules.RegisterModule(zoho_books.New(session))
	log.Info("registered modules", zap.Strings("modules", modules.ListModules()))

	var database *gorm.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		modules.SetUsageRecorder(db.NewRecorder(database))
		log.Info("usage log enabled")
	}

	handler := mcp.NewHandler(version)

	switch cfg.Transport {
	case config.TransportStdio:
		if err := middleware.ServeStdio(ctx, handler, os.Stdin, os.Stdout); err != nil {
			log.Fatal("stdio transport failed", zap.Error(err))
		}
	case config.TransportHTTP:
		serveHTTP(ctx, cfg, handler, database)
	}

	log.Info("server stopped")
}

func serveHTTP(ctx context.Context, cfg *config.Config, handler *mcp.Handler, database *gorm.DB) {
	log := observability.Logger()

	var verifier middleware.TokenVerifier
	if cfg.GatewayJWKSURL != "" {
		verifier = auth.NewGatewayVerifier(cfg.GatewayJWKSURL, cfg.GatewayIssuer)
	} else {
		log.Warn("GATEWAY_JWKS_URL is not set, HTTP transport accepts unauthenticated requests")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if database != nil {
			if err := db.HealthCheck(r.Context(), database); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"status":"degraded","db":"unavailable"}`)
				return
			}
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	mux.Handle("/mcp", middleware.Recovery(middleware.AccessLog(middleware.Authenticate(verifier)(rateLimiter.Middleware(middleware.Transport(handler))))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting MCP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errCh:
		log.Fatal("failed to start server", zap.Error(err))
	}

	// Give in-flight requests up to 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
}
