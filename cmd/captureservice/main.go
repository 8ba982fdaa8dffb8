package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capture-service/internal/audit"
	"capture-service/internal/auth"
	"capture-service/internal/config"
	"capture-service/internal/engine"
	"capture-service/internal/http"
	"capture-service/internal/media"
	"capture-service/internal/repository/postgres"
	"capture-service/internal/service"
	"capture-service/internal/storage/s3"
	"capture-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	envFilePath      = ".env"
	serverAddrPrefix = ":"
	signalBufferSize = 1
	jobSweepInterval = time.Minute
)

var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	_ = godotenv.Load(envFilePath)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("database connection established")

	userRepo := postgres.NewUserRepository(db)
	assetRepo := postgres.NewAssetRepository(db)
	jobRepo := postgres.NewJobRepository(db)

	store, err := s3.NewClient(&cfg.AWS)
	if err != nil {
		log.Fatal("failed to create object store client", zap.Error(err))
	}

	log.Info("object store client initialized", zap.String("bucket", cfg.AWS.Bucket))

	engineClient := engine.NewHTTPClient(&cfg.Engine)
	coordinator := media.NewCoordinator(log, media.NewFFProbe(cfg.Probe.FFProbePath, cfg.Probe.Timeout))

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryDuration)
	authMiddleware := auth.NewMiddleware(jwtService)
	auditLogger := audit.NewLogger(db.Pool, log)

	authService := service.NewAuthService(userRepo, jwtService, log)
	assetService := service.NewAssetService(assetRepo, store, coordinator, cfg.AWS.UploadURLExpiry, log)
	jobService := service.NewJobService(jobRepo, assetRepo, engineClient, store, cfg.AWS.DownloadURLExpiry, log)
	exportService := service.NewExportService(assetRepo, store, log)

	server := http.NewServer(&http.ServerDependencies{
		Config:         cfg,
		Logger:         log,
		AuthService:    authService,
		AssetService:   assetService,
		JobService:     jobService,
		ExportService:  exportService,
		Users:          userRepo,
		AuthMiddleware: authMiddleware,
		AuditLogger:    auditLogger,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runJobSweep(sweepCtx, jobService, log)

	go func() {
		log.Info("starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := server.Start(serverAddrPrefix + cfg.Server.Port); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, signalBufferSize)
	signal.Notify(quit, shutdownSignals...)
	<-quit

	log.Info("shutting down server")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited gracefully")
}

// runJobSweep periodically pulls engine status for every in-flight job so
// records converge even when no client is polling.
func runJobSweep(ctx context.Context, jobs *service.JobService, log *zap.Logger) {
	ticker := time.NewTicker(jobSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := jobs.SyncAllRunning(ctx); err != nil {
				log.Warn("job status sweep failed", zap.Error(err))
			}
		}
	}
}
