package api

import (
	"net/http"
	"time"

	"cityquest/internal/service"
	"cityquest/pkg/auth"
	"cityquest/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type adminRoutes struct {
	repo service.CleanupRepository
}

// NewAdminRoutes exposes the expired-row cleanup. Rows stay logically
// invalid once expires_at passes regardless; this endpoint only reclaims
// the storage.
func NewAdminRoutes(handler *gin.RouterGroup, repo service.CleanupRepository, a *auth.AdminAuth) {
	r := &adminRoutes{repo: repo}
	h := handler.Group("/admin")
	h.Use(a.AdminOnly())
	{
		h.POST("/cleanup", r.Cleanup)
	}
}

func (r *adminRoutes) Cleanup(c *gin.Context) {
	log := logger.Logger()

	now := time.Now().UTC()
	dryRun := c.Query("dry_run") == "true"

	if dryRun {
		counts, err := r.repo.CountExpired(c.Request.Context(), now)
		if err != nil {
			log.Error("failed to count expired rows", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"dry_run":    true,
			"expired":    counts,
			"checked_at": now,
		})
		return
	}

	counts, err := r.repo.DeleteExpired(c.Request.Context(), now)
	if err != nil {
		log.Error("failed to delete expired rows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}

	log.Info("purged expired rows",
		zap.Int64("messages", counts["messages"]),
		zap.Int64("matches", counts["matches"]),
		zap.Int64("quest_selections", counts["quest_selections"]),
		zap.Int64("daily_profiles", counts["daily_profiles"]))

	c.JSON(http.StatusOK, gin.H{
		"dry_run":    false,
		"deleted":    counts,
		"cleaned_at": now,
	})
}
