package api

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"

	"cityquest/internal/service"

	"github.com/gin-gonic/gin"
)

var dataImageURIRegex = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+$`)

const maxPhotoURLLength = 2_500_000

// validPhotoURL accepts an http(s) URL or an inline data:image base64 URI.
func validPhotoURL(value string) bool {
	if value == "" || len(value) > maxPhotoURLLength {
		return false
	}
	if parsed, err := url.Parse(value); err == nil {
		if parsed.Scheme == "http" || parsed.Scheme == "https" {
			return parsed.Host != ""
		}
	}
	return dataImageURIRegex.MatchString(value)
}

// respondServiceError translates typed service outcomes into HTTP statuses.
// Contention outcomes never reach here: find-or-create reports them as a
// non-matched success.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrQuestNotFound),
		errors.Is(err, service.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoQuestSelected),
		errors.Is(err, service.ErrNoDailyProfile),
		errors.Is(err, service.ErrMatchExpired),
		errors.Is(err, service.ErrMatchCancelled),
		errors.Is(err, service.ErrAlreadyCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
