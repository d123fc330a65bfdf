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

type matchRoutes struct {
	ms service.MatchServiceI
}

func NewMatchRoutes(handler *gin.RouterGroup, ms service.MatchServiceI) {
	r := &matchRoutes{ms: ms}
	h := handler.Group("/matches")
	{
		h.GET("", r.ListMatches)
		h.POST("/find-or-create", r.FindOrCreateMatch)
		h.GET("/:id", r.GetMatch)
		h.GET("/:id/messages", r.ListMessages)
		h.POST("/:id/messages", r.SendMessage)
		h.POST("/:id/proof", r.SubmitProof)
		h.POST("/:id/complete", r.ConfirmCompletion)
	}
}

type ListMatchesQuery struct {
	UserID string `form:"user_id"`
	Limit  int    `form:"limit"`
}

func (r *matchRoutes) ListMatches(c *gin.Context) {
	log := logger.Logger()

	var q ListMatchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	userID, err := uuid.Parse(q.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	summaries, err := r.ms.ListMatches(c.Request.Context(), userID, clampLimit(q.Limit, 20, 100))
	if err != nil {
		log.Error("failed to list matches", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	out := make([]gin.H, len(summaries))
	for i, summary := range summaries {
		out[i] = matchSummaryResponse(summary, userID)
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(out),
		"data":  out,
	})
}

type FindOrCreateRequest struct {
	UserID string `json:"user_id"`
}

func (r *matchRoutes) FindOrCreateMatch(c *gin.Context) {
	log := logger.Logger()

	var req FindOrCreateRequest
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

	result, err := r.ms.FindOrCreateMatch(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to find or create match", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	if !result.Matched {
		c.JSON(http.StatusOK, gin.H{
			"created": false,
			"matched": false,
			"data":    nil,
			"message": "no candidate found yet",
		})
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"created": result.Created,
		"matched": true,
		"data":    matchResponse(result.Match),
	})
}

func (r *matchRoutes) GetMatch(c *gin.Context) {
	log := logger.Logger()

	matchID, userID, ok := r.matchAndUserIDs(c, c.Query("user_id"))
	if !ok {
		return
	}

	match, quest, err := r.ms.GetMatch(c.Request.Context(), matchID, userID)
	if err != nil {
		log.Error("failed to get match", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	out := matchResponse(match)
	out["quest"] = questSummary(quest)
	c.JSON(http.StatusOK, out)
}

type ListMessagesQuery struct {
	UserID string `form:"user_id"`
	Limit  int    `form:"limit"`
}

func (r *matchRoutes) ListMessages(c *gin.Context) {
	log := logger.Logger()

	var q ListMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	matchID, userID, ok := r.matchAndUserIDs(c, q.UserID)
	if !ok {
		return
	}

	messages, err := r.ms.ListMessages(c.Request.Context(), matchID, userID, clampLimit(q.Limit, 200, 500))
	if err != nil {
		log.Error("failed to list messages", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	out := make([]gin.H, len(messages))
	for i, msg := range messages {
		out[i] = messageResponse(msg)
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(out),
		"data":  out,
	})
}

type SendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

func (r *matchRoutes) SendMessage(c *gin.Context) {
	log := logger.Logger()

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	matchID, senderID, ok := r.matchAndUserIDs(c, req.SenderID)
	if !ok {
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be 1-500 characters"})
		return
	}

	msg, err := r.ms.SendMessage(c.Request.Context(), matchID, senderID, content)
	if err != nil {
		log.Error("failed to send message", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, messageResponse(msg))
}

type SubmitProofRequest struct {
	UserID   string `json:"user_id"`
	PhotoURL string `json:"photo_url"`
}

func (r *matchRoutes) SubmitProof(c *gin.Context) {
	log := logger.Logger()

	var req SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	matchID, userID, ok := r.matchAndUserIDs(c, req.UserID)
	if !ok {
		return
	}

	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if !validPhotoURL(req.PhotoURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_url must be an http(s) URL or a data:image base64 URI"})
		return
	}

	match, err := r.ms.SubmitProof(c.Request.Context(), matchID, userID, req.PhotoURL)
	if err != nil {
		log.Error("failed to submit proof", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, matchResponse(match))
}

type ConfirmCompletionRequest struct {
	UserID string `json:"user_id"`
}

func (r *matchRoutes) ConfirmCompletion(c *gin.Context) {
	log := logger.Logger()

	var req ConfirmCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	matchID, userID, ok := r.matchAndUserIDs(c, req.UserID)
	if !ok {
		return
	}

	match, err := r.ms.ConfirmCompletion(c.Request.Context(), matchID, userID)
	if err != nil {
		log.Error("failed to confirm completion", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, matchResponse(match))
}

func (r *matchRoutes) matchAndUserIDs(c *gin.Context, rawUserID string) (uuid.UUID, uuid.UUID, bool) {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return uuid.Nil, uuid.Nil, false
	}

	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return uuid.Nil, uuid.Nil, false
	}

	return matchID, userID, true
}

func matchResponse(m *model.Match) gin.H {
	return gin.H{
		"id":           m.ID,
		"quest_id":     m.QuestID,
		"user_a":       m.Users[0],
		"user_b":       m.Users[1],
		"status":       m.Status,
		"proofs":       []gin.H{proofResponse(m.Proofs[0]), proofResponse(m.Proofs[1])},
		"confirmed_at": m.ConfirmedAt,
		"created_at":   m.CreatedAt,
		"expires_at":   m.ExpiresAt,
		"completed_at": m.CompletedAt,
	}
}

func questSummary(q *model.Quest) gin.H {
	if q == nil {
		return nil
	}
	return gin.H{
		"id":       q.ID,
		"title":    q.Title,
		"district": q.District,
	}
}

func proofResponse(p model.Proof) gin.H {
	return gin.H{
		"photo_url":    p.PhotoURL,
		"submitted_at": p.SubmittedAt,
	}
}

// matchSummaryResponse renders a match from the viewer's side: their own
// proof/confirmation under "mine", the partner's under "partner".
func matchSummaryResponse(s *model.MatchSummary, viewerID uuid.UUID) gin.H {
	m := s.Match
	mine, _ := m.SlotOf(viewerID)
	theirs := 1 - mine

	out := gin.H{
		"id":           m.ID,
		"quest_id":     m.QuestID,
		"status":       m.Status,
		"created_at":   m.CreatedAt,
		"expires_at":   m.ExpiresAt,
		"completed_at": m.CompletedAt,
		"proof": gin.H{
			"mine":                 m.Proofs[mine].PhotoURL,
			"partner":              m.Proofs[theirs].PhotoURL,
			"mine_submitted_at":    m.Proofs[mine].SubmittedAt,
			"partner_submitted_at": m.Proofs[theirs].SubmittedAt,
		},
		"confirmation": gin.H{
			"mine":    m.ConfirmedAt[mine],
			"partner": m.ConfirmedAt[theirs],
		},
	}

	if s.Quest != nil {
		out["quest"] = questSummary(s.Quest)
	}
	if s.Partner != nil {
		out["partner"] = gin.H{
			"id":           s.Partner.ID,
			"display_name": s.Partner.DisplayName,
			"age":          s.Partner.Age,
			"city":         s.Partner.City,
			"karma":        s.Partner.Karma,
		}
	}
	if s.LastMessage != nil {
		out["last_message"] = messageResponse(s.LastMessage)
	}

	return out
}

func messageResponse(m *model.Message) gin.H {
	return gin.H{
		"id":         m.ID,
		"match_id":   m.MatchID,
		"sender_id":  m.SenderID,
		"content":    m.Content,
		"created_at": m.CreatedAt,
		"expires_at": m.ExpiresAt,
	}
}
