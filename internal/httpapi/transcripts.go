package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListTranscripts returns the user's call history across all agents.
func (h Handlers) ListTranscripts(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	list, err := h.Transcripts.ListByUser(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": list})
}

// ListAgentTranscripts returns one agent's call history.
func (h Handlers) ListAgentTranscripts(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	list, err := h.Transcripts.ListByAgent(c.Request.Context(), userID, c.Param("agent_id"), queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": list})
}

func (h Handlers) GetTranscript(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	rec, err := h.Transcripts.Get(c.Request.Context(), userID, c.Param("transcript_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
