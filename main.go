package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/app"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.MustNewLogger(logging.Options{Service: "minishop-checkout", Env: os.Getenv("ENV")}).
			Fatal("config_invalid", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		prometrics.New(prometheus.DefaultRegisterer, ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Options{
		Observability: tel,
		Metrics:       promhttp.Handler(),
	})
	if err != nil {
		baseLogger.Fatal("app_init_failed", zap.Error(err))
	}
	application.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		baseLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("storage", string(cfg.Storage)),
			zap.String("gateway", string(cfg.GatewayMode)),
			zap.String("checkout_flow", cfg.CheckoutFlow),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		baseLogger.Info("http_server_stopped")
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("app_shutdown_error", zap.Error(err))
	}
}
