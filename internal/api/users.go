package api

import (
	"net/http"
	"strings"

	"cityquest/internal/model"
	"cityquest/internal/service"
	"cityquest/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type userRoutes struct {
	us service.UserServiceI
}

func NewUserRoutes(handler *gin.RouterGroup, us service.UserServiceI) {
	r := &userRoutes{us: us}
	h := handler.Group("/users")
	{
		h.POST("", r.RegisterUser)
		h.GET("/:id", r.GetUser)
		h.GET("/:id/karma-history", r.GetKarmaHistory)
	}
}

type RegisterUserRequest struct {
	DisplayName string `json:"display_name"`
	Age         int    `json:"age"`
	City        string `json:"city"`
}

func (r *userRoutes) RegisterUser(c *gin.Context) {
	log := logger.Logger()

	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if len(req.DisplayName) < 2 || len(req.DisplayName) > 40 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name must be 2-40 characters"})
		return
	}
	if req.Age < 18 || req.Age > 99 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "age must be between 18 and 99"})
		return
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = "Istanbul"
	}

	u := &model.User{
		DisplayName: req.DisplayName,
		Age:         req.Age,
		City:        city,
	}

	if err := r.us.RegisterUser(c.Request.Context(), u); err != nil {
		log.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	c.JSON(http.StatusCreated, userResponse(u))
}

func (r *userRoutes) GetUser(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := r.us.GetUserByID(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to get user", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}

type KarmaHistoryQuery struct {
	Limit int `form:"limit"`
}

func (r *userRoutes) GetKarmaHistory(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var q KarmaHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	limit := clampLimit(q.Limit, 50, 200)

	user, events, err := r.us.GetKarmaHistory(c.Request.Context(), id, limit)
	if err != nil {
		log.Error("failed to get karma history", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	out := make([]gin.H, len(events))
	for i, event := range events {
		out[i] = gin.H{
			"id":         event.ID,
			"delta":      event.Delta,
			"reason":     event.Reason,
			"match_id":   event.MatchID,
			"metadata":   event.Metadata,
			"created_at": event.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"karma": user.Karma,
		"count": len(events),
		"data":  out,
	})
}

func userResponse(u *model.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"display_name": u.DisplayName,
		"age":          u.Age,
		"city":         u.City,
		"karma":        u.Karma,
		"created_at":   u.CreatedAt,
	}
}
