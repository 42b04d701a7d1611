package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicedash/internal/agents"
	"voicedash/internal/assistant"
	"voicedash/internal/auth"
	"voicedash/internal/onboarding"
	"voicedash/internal/transcripts"
	"voicedash/internal/users"
)

// writeError maps service errors onto HTTP statuses. Unknown errors are
// 500 with a generic body; details stay in the logs.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrRefreshRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token is no longer valid"})
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, agents.ErrNotFound),
		errors.Is(err, transcripts.ErrNotFound),
		errors.Is(err, onboarding.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, agents.ErrInvalidArgument),
		errors.Is(err, transcripts.ErrInvalidArgument),
		errors.Is(err, onboarding.ErrInvalidArgument),
		errors.Is(err, users.ErrInvalidArgument),
		errors.Is(err, assistant.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, agents.ErrNotProvisioned),
		errors.Is(err, assistant.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice provider is not configured"})
	default:
		var pe *assistant.ProvisioningError
		if errors.As(err, &pe) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "voice provider request failed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
