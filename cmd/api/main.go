package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/study-assistant/internal/adapters/http"
	"github.com/kirillkom/study-assistant/internal/bootstrap"
	"github.com/kirillkom/study-assistant/internal/config"
	"github.com/kirillkom/study-assistant/internal/observability/logging"
)

const serviceName = "study-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger(serviceName, "error").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	opts := []httpadapter.RouterOption{
		httpadapter.WithMetrics(app.HTTPMetrics),
		httpadapter.WithLogger(logger),
	}
	if app.Files != nil {
		opts = append(opts, httpadapter.WithFileReader(app.Files))
	}
	router := httpadapter.NewRouter(httpadapter.Config{
		Service:           serviceName,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		APIRateLimitRPS:   cfg.APIRateLimitRPS,
		APIRateLimitBurst: cfg.APIRateLimitBurst,
		APIMaxInFlight:    cfg.APIMaxInFlight,
	}, app.Queue, opts...).Handler()

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConns)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := app.Queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("queue_worker_stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "max_conns", cfg.APIMaxConns)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", "error", err)
	}
	<-workerDone
	app.Handoffs.Wait()
	logger.Info("api_stopped")
}
