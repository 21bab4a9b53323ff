package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "tour-service/docs"
	"tour-service/internal/bootstrap"
	"tour-service/internal/config"
	"tour-service/internal/handlers"
	"tour-service/internal/logging"
	"tour-service/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("TOUR_CONFIG"), "path to an optional YAML config file")
	flag.Parse()

	cfg := InitConfig(*configPath)
	logger := InitLogger(cfg)
	defer logger.Sync()

	rt, err := bootstrap.Build(context.Background(), cfg, logger, metrics.Default())
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close()

	report := rt.Editor.Open(context.Background())
	logger.Info("tour loaded",
		zap.Int("orphansPruned", report.OrphansPruned),
		zap.Int("migrated", report.Migrated),
		zap.Bool("changed", report.Changed()))

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.MaxUploadSizeMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Editor API
	api := app.Group("/api/tour")
	handlers.NewEditorHandler(rt.Editor, logger).RegisterRoutes(api)
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Submission and hosting endpoints keep their original paths
	handlers.NewSubmissionHandler(rt.Submissions, logger).RegisterRoutes(app)
	if err := os.MkdirAll(cfg.HostedDir, 0o755); err != nil {
		logger.Fatal("hosted directory unavailable", zap.String("dir", cfg.HostedDir), zap.Error(err))
	}
	app.Static("/hosted", cfg.HostedDir)

	for _, r := range app.GetRoutes(true) {
		logger.Debug("route registered", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.AppPort), zap.String("env", cfg.Env))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func InitConfig(path string) *config.Config {
	cfg, errs := config.Load(path)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}
	return cfg
}

func InitLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	return logger
}
