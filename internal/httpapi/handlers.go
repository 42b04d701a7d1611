package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicedash/internal/agents"
	"voicedash/internal/auth"
	"voicedash/internal/config"
	"voicedash/internal/onboarding"
	"voicedash/internal/transcripts"
	"voicedash/internal/users"
	"voicedash/pkg/logger"
)

// Handlers carries the wired services. Routes stay thin: decode, call a
// service, map the error.
type Handlers struct {
	Users       *users.Service
	Agents      *agents.Service
	Transcripts *transcripts.Service
	Onboarding  *onboarding.Service

	Auth    *auth.Manager
	Refresh *auth.RefreshStore

	Voice config.VoiceConfig
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         users.User `json:"user"`
}

// Register creates an account and signs the user in.
func (h Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	u, err := h.Users.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issueTokens(c, u, http.StatusCreated)
}

// Login exchanges credentials for a token pair.
func (h Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issueTokens(c, u, http.StatusOK)
}

// RefreshToken rotates a refresh token. The old token is consumed; a
// replay after rotation is rejected.
func (h Handlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}

	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	if h.Refresh != nil {
		userID, err := h.Refresh.Consume(c.Request.Context(), claims.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if userID != claims.UserID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
	}

	u, err := h.Users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issueTokens(c, u, http.StatusOK)
}

// Logout revokes the presented refresh token. Always 204: revoking an
// already-dead token is not an error.
func (h Handlers) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err == nil && h.Refresh != nil {
		if err := h.Refresh.Revoke(c.Request.Context(), claims.ID); err != nil {
			logger.FromGin(c).Warn("refresh revoke failed", slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h Handlers) Me(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	u, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) issueTokens(c *gin.Context, u users.User, status int) {
	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Refresh != nil {
		if err := h.Refresh.Save(c.Request.Context(), pair.RefreshID, u.ID, h.Auth.RefreshTTL()); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(status, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         u,
	})
}

// mustUserID pulls the authenticated user or aborts. Routes behind the
// auth middleware always have one; the guard covers misconfiguration.
func mustUserID(c *gin.Context) (string, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return userID, true
}
