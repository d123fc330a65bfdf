package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cityquest/internal/api"
	"cityquest/internal/repository"
	"cityquest/internal/service"
	"cityquest/pkg/auth"
	"cityquest/pkg/daytime"
	"cityquest/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	calendar, err := daytime.NewCalendar(cfg.Timezone)
	if err != nil {
		zapLogger.Fatal("Failed to initialize calendar", zap.Error(err))
	}

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	userService := service.NewUserService(repo)
	dailyService := service.NewDailyService(repo, calendar)
	matchService := service.NewMatchService(repo, calendar)
	adminAuth := auth.NewAdminAuth(cfg.Auth.AdminToken)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	a.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	api.NewUserRoutes(a, userService)
	api.NewQuestRoutes(a, dailyService, adminAuth)
	api.NewDailyRoutes(a, dailyService)
	api.NewMatchRoutes(a, matchService)
	api.NewAdminRoutes(a, repo, adminAuth)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := serveUntilShutdown(ctx, srv, zapLogger); err != nil {
		zapLogger.Fatal("Server error", zap.Error(err))
	}
	zapLogger.Info("Server stopped")
}

const shutdownTimeout = 10 * time.Second

// serveUntilShutdown runs the server until ctx is cancelled, then drains
// in-flight requests before returning. Allocation and confirmation
// transactions finish instead of being cut off mid-commit on SIGTERM.
func serveUntilShutdown(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-serveErr
}
