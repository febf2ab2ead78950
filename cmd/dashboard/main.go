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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	_ "github.com/noah-isme/nexlearn-dashboard/api/swagger"
	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/handler"
	"github.com/noah-isme/nexlearn-dashboard/internal/middleware"
	"github.com/noah-isme/nexlearn-dashboard/internal/service"
	"github.com/noah-isme/nexlearn-dashboard/internal/session"
	"github.com/noah-isme/nexlearn-dashboard/internal/telemetry"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	"github.com/noah-isme/nexlearn-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/nexlearn-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/nexlearn-dashboard/pkg/middleware/requestid"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/visitor"
	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

// @title NexLearn Dashboard Gateway
// @version 1.0.0
// @description Session-holding gateway in front of the NexLearn LMS API
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, cfg.Telemetry, logr.Named("telemetry"))
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logr.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()

	persist, err := openStorage(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open session storage", zap.Error(err))
	}
	defer persist.close()
	go persist.runJanitor(ctx)

	backend := storage.Instrument(persist.backend, cfg.Storage.Driver, metrics)
	client := gateway.New(cfg.API, gateway.WithLogger(logr.Named("gateway")))

	storeOpts := []session.Option{session.WithObserver(metrics)}
	if cfg.Session.StrictSequencing {
		storeOpts = append(storeOpts, session.WithStrictSequencing())
	}
	registry := session.NewRegistry(backend,
		func(creds gateway.CredentialSource) session.AuthGateway { return client.Auth(creds) },
		session.WithIdleTTL(cfg.Session.IdleTTL),
		session.WithStoreOptions(storeOpts...),
		session.WithSizeReporter(metrics),
		session.WithRegistryLogger(logr.Named("session")),
	)
	go registry.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics, "/auth/session/events", "/metrics"))

	handler.RegisterRoutes(r, handler.Dependencies{
		Registry: registry,
		Metrics:  metrics,
		Users: func(creds gateway.CredentialSource) handler.UsersAPI {
			return client.Users(creds)
		},
		Checks: persist.checks,
		Visitor: visitor.Options{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
		},
		Logger:            logr.Named("http"),
		ExposeCredentials: cfg.Env != config.EnvProduction,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(r, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
