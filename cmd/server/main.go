package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gomonate/internal/config"
	"gomonate/internal/handler"
	"gomonate/internal/infrastructure/cache"
	"gomonate/internal/infrastructure/database"
	"gomonate/internal/infrastructure/mq"
	"gomonate/internal/infrastructure/storage"
	"gomonate/internal/job"
	"gomonate/internal/logging"
	"gomonate/internal/service"
	"gomonate/pkg/idgen"
)

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("GOMONATE_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

type backgroundJob interface {
	Start(ctx context.Context)
	Stop()
}

func run(cfg *config.Config, log *logging.SlogLogger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info(ctx, "database ready", "driver", cfg.Database.Driver)

	redisClient, err := cache.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	var statsCache *cache.JSONCache
	if redisClient != nil {
		defer redisClient.Close()
		statsCache = cache.NewJSONCache(redisClient, "gomonate:stats:")
		log.Info(ctx, "redis ready", "host", cfg.Redis.Host)
	}

	var archiver service.Archiver
	if cfg.Report.S3.Enabled {
		s3Archiver, err := storage.NewS3Archiver(ctx, &cfg.Report.S3)
		if err != nil {
			return err
		}
		archiver = s3Archiver
		log.Info(ctx, "report archive ready", "bucket", cfg.Report.S3.Bucket)
	}

	users := service.NewUserService(db, cfg, log)
	if err := users.SeedSuperAdmin(ctx); err != nil {
		return fmt.Errorf("seed superadmin: %w", err)
	}

	jobs := []backgroundJob{
		job.NewCodeExpiryJob(db, cfg, log),
		job.NewBalanceAuditJob(db, cfg, log),
	}
	if cfg.Kafka.Enabled {
		publisher, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()
		jobs = append(jobs, job.NewOutboxSender(db, publisher, cfg, log))
		log.Info(ctx, "kafka ready", "brokers", cfg.Kafka.Brokers)
	}
	for _, j := range jobs {
		go j.Start(ctx)
	}

	h := handler.NewHandler(
		service.NewRedemptionService(db, cfg, log),
		service.NewEmployeeService(db, cfg, log),
		service.NewCodeService(db, redisClient, cfg, log),
		users,
		service.NewReportService(db, statsCache, archiver, cfg, log),
		log,
	)
	router := handler.SetupRouter(h, users, db, cfg, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info(ctx, "shutting down", "signal", sig.String())
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	for _, j := range jobs {
		j.Stop()
	}
	cancel()

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown", "error", err)
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}
