package api

import (
	"net/http"
	"strings"

	"cityquest/internal/service"
	"cityquest/pkg/auth"
	"cityquest/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type questRoutes struct {
	ds service.DailyServiceI
}

func NewQuestRoutes(handler *gin.RouterGroup, ds service.DailyServiceI, a *auth.AdminAuth) {
	r := &questRoutes{ds: ds}
	h := handler.Group("/quests")
	{
		h.GET("", r.ListQuests)
		h.POST("", a.AdminOnly(), r.UpsertQuest)
	}
}

type ListQuestsQuery struct {
	District string `form:"district"`
	Limit    int    `form:"limit"`
}

func (r *questRoutes) ListQuests(c *gin.Context) {
	log := logger.Logger()

	var q ListQuestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	quests, err := r.ds.ListQuests(c.Request.Context(), strings.TrimSpace(q.District), clampLimit(q.Limit, 20, 100))
	if err != nil {
		log.Error("failed to list quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list quests"})
		return
	}

	out := make([]gin.H, len(quests))
	for i, quest := range quests {
		out[i] = gin.H{
			"id":       quest.ID,
			"title":    quest.Title,
			"district": quest.District,
			"active":   quest.Active,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(out),
		"data":  out,
	})
}

type UpsertQuestRequest struct {
	Title    string `json:"title"`
	District string `json:"district"`
	Active   *bool  `json:"active"`
}

func (r *questRoutes) UpsertQuest(c *gin.Context) {
	log := logger.Logger()

	var req UpsertQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.District = strings.TrimSpace(req.District)
	if len(req.Title) < 5 || len(req.Title) > 120 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must be 5-120 characters"})
		return
	}
	if len(req.District) < 2 || len(req.District) > 40 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "district must be 2-40 characters"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	quest, err := r.ds.UpsertQuest(c.Request.Context(), req.Title, req.District, active)
	if err != nil {
		log.Error("failed to upsert quest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upsert quest"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       quest.ID,
		"title":    quest.Title,
		"district": quest.District,
		"active":   quest.Active,
	})
}
