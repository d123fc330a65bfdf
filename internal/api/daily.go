package api

import (
	"net/http"
	"strings"

	"cityquest/internal/service"
	"cityquest/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type dailyRoutes struct {
	ds service.DailyServiceI
}

// NewDailyRoutes wires the two one-per-day upserts: quest selection and
// daily profile.
func NewDailyRoutes(handler *gin.RouterGroup, ds service.DailyServiceI) {
	r := &dailyRoutes{ds: ds}
	handler.POST("/quest-selections", r.SelectQuest)
	handler.POST("/daily-profiles", r.PublishDailyProfile)
}

type SelectQuestRequest struct {
	UserID  string `json:"user_id"`
	QuestID string `json:"quest_id"`
}

func (r *dailyRoutes) SelectQuest(c *gin.Context) {
	log := logger.Logger()

	var req SelectQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	questID, err := uuid.Parse(req.QuestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	selection, err := r.ds.SelectQuest(c.Request.Context(), userID, questID)
	if err != nil {
		log.Error("failed to select quest", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          selection.ID,
		"user_id":     selection.UserID,
		"quest_id":    selection.QuestID,
		"day_key":     selection.DayKey,
		"selected_at": selection.SelectedAt,
		"expires_at":  selection.ExpiresAt,
	})
}

type PublishDailyProfileRequest struct {
	UserID   string  `json:"user_id"`
	District string  `json:"district"`
	PhotoURL string  `json:"photo_url"`
	Mood     *string `json:"mood"`
}

func (r *dailyRoutes) PublishDailyProfile(c *gin.Context) {
	log := logger.Logger()

	var req PublishDailyProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	req.District = strings.TrimSpace(req.District)
	if len(req.District) < 2 || len(req.District) > 40 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "district must be 2-40 characters"})
		return
	}

	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if !validPhotoURL(req.PhotoURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_url must be an http(s) URL or a data:image base64 URI"})
		return
	}

	if req.Mood != nil {
		mood := strings.TrimSpace(*req.Mood)
		if len(mood) > 80 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mood must be at most 80 characters"})
			return
		}
		req.Mood = &mood
	}

	profile, err := r.ds.PublishDailyProfile(c.Request.Context(), userID, req.District, req.PhotoURL, req.Mood)
	if err != nil {
		log.Error("failed to publish daily profile", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         profile.ID,
		"user_id":    profile.UserID,
		"day_key":    profile.DayKey,
		"district":   profile.District,
		"photo_url":  profile.PhotoURL,
		"mood":       profile.Mood,
		"expires_at": profile.ExpiresAt,
	})
}
