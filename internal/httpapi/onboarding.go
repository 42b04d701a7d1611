package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicedash/internal/onboarding"
)

// GetOnboarding returns the wizard state; new users get a zero profile.
func (h Handlers) GetOnboarding(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	p, err := h.Onboarding.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveOnboarding merges one wizard step; untouched fields survive.
func (h Handlers) SaveOnboarding(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var ch onboarding.Changes
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, err := h.Onboarding.Save(c.Request.Context(), userID, ch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CompleteOnboarding finishes the wizard and flips the account flag.
func (h Handlers) CompleteOnboarding(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.Onboarding.Complete(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}
