// Package http assembles the echo server: middleware stack, route table,
// and the central error handler.
package http

import (
	"context"
	stdhttp "net/http"

	"capture-service/internal/audit"
	"capture-service/internal/auth"
	"capture-service/internal/config"
	"capture-service/internal/http/handler"
	"capture-service/internal/http/middleware"
	"capture-service/internal/service"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	jsonKeyStatus    = "status"
	statusOK         = "ok"
	requestBodyLimit = "1M"
)

type ServerDependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	AuthService    *service.AuthService
	AssetService   *service.AssetService
	JobService     *service.JobService
	ExportService  *service.ExportService
	Users          handler.UserDirectory
	AuthMiddleware *auth.Middleware
	AuditLogger    *audit.Logger
}

type Server struct {
	echo *echo.Echo
	deps *ServerDependencies
}

func NewServer(deps *ServerDependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = NewErrorHandler(deps.Logger)

	e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
	e.Server.WriteTimeout = deps.Config.Server.WriteTimeout

	// Request ID first so every log line downstream can carry it.
	e.Use(middleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(requestBodyLimit))
	e.Use(echomiddleware.CORS())

	globalRateLimiter := middleware.NewGlobalRateLimiter()
	e.Use(globalRateLimiter.Middleware())

	strictRateLimiter := middleware.NewStrictRateLimiter()

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.AuditLogger)
	assetHandler := handler.NewAssetHandler(deps.AssetService, deps.ExportService, deps.AuditLogger)
	jobHandler := handler.NewJobHandler(deps.JobService, deps.Users, deps.AuditLogger)

	e.POST("/auth/signup", authHandler.Signup, strictRateLimiter.Middleware())
	e.POST("/auth/login", authHandler.Login, strictRateLimiter.Middleware())
	e.GET("/health", healthCheck)

	api := e.Group("")
	api.Use(deps.AuthMiddleware.RequireJWT())

	api.POST("/assets", assetHandler.Create)
	api.GET("/assets", assetHandler.List)
	api.GET("/assets/:id", assetHandler.Get)
	api.DELETE("/assets/:id", assetHandler.Delete)
	api.POST("/assets/:id/ready", assetHandler.FinalizeReady)
	api.POST("/assets/:id/failed", assetHandler.FinalizeFailed)
	api.POST("/assets/:id/reconcile", assetHandler.Reconcile)
	api.PATCH("/assets/:id/visibility", assetHandler.UpdateVisibility)
	api.POST("/assets/:id/download-archive", assetHandler.DownloadArchive)

	api.POST("/jobs", jobHandler.Create)
	api.GET("/jobs", jobHandler.List)
	api.GET("/jobs/:id", jobHandler.Get)
	api.PATCH("/jobs/:id/notes", jobHandler.UpdateNotes)
	api.PATCH("/jobs/:id/visibility", jobHandler.UpdateVisibility)
	api.POST("/jobs/:id/terminate", jobHandler.Terminate)
	api.POST("/jobs/:id/sync-status", jobHandler.SyncStatus)
	api.DELETE("/jobs/:id", jobHandler.Delete)
	api.GET("/jobs/:id/result-url", jobHandler.ResultURL)

	return &Server{
		echo: e,
		deps: deps,
	}
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func healthCheck(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{
		jsonKeyStatus: statusOK,
	})
}
