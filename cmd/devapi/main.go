package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/devapi"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	"github.com/noah-isme/nexlearn-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/nexlearn-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/nexlearn-dashboard/pkg/middleware/requestid"
)

// devapi serves a local stand-in for the LMS API with seeded accounts.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("devapi must not run in production")
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	svc := devapi.NewService(devapi.Config{
		JWTSecret: cfg.DevAPI.JWTSecret,
		TokenTTL:  cfg.DevAPI.TokenTTL,
	}, nil, logr.Named("devapi"))

	seeded := svc.SeedTenant(cfg.DevAPI.TenantID, devapi.DefaultAccounts())
	logr.Info("accounts seeded", zap.String("tenant_id", cfg.DevAPI.TenantID), zap.Int("count", seeded))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))

	devapi.NewServer(svc, logr.Named("devapi")).Register(r.Group("/api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", cfg.DevAPI.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("devapi starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("devapi failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
