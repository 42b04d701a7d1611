package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicedash/internal/agents"
)

// ListAgents returns the user's active agents, newest first.
func (h Handlers) ListAgents(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	list, err := h.Agents.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": list})
}

// CreateAgent provisions the remote assistant and persists the agent.
func (h Handlers) CreateAgent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var f agents.FormData
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	a, err := h.Agents.Create(c.Request.Context(), userID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Handlers) GetAgent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	a, err := h.Agents.Get(c.Request.Context(), userID, c.Param("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// MostRecentAgent backs the dashboard home, which opens on the newest
// active agent. 404 means "no agents yet, show the wizard".
func (h Handlers) MostRecentAgent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	a, err := h.Agents.MostRecent(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateAgent applies a partial edit. When the provider sync fails the
// local write still commits and the response carries
// remote_sync_failed=true so the UI can warn the user.
func (h Handlers) UpdateAgent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var ch agents.Changes
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := h.Agents.Update(c.Request.Context(), userID, c.Param("agent_id"), ch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) DeleteAgent(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.Agents.SoftDelete(c.Request.Context(), userID, c.Param("agent_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SaveAgentDraft stores wizard progress without provisioning.
func (h Handlers) SaveAgentDraft(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var f agents.FormData
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	a, err := h.Agents.SaveDraft(c.Request.Context(), userID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ResumeAgentDraft returns the newest unfinished draft; 404 when none.
func (h Handlers) ResumeAgentDraft(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	a, err := h.Agents.ResumeDraft(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// CompleteAgentDraft provisions the draft and activates it.
func (h Handlers) CompleteAgentDraft(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var f agents.FormData
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	a, err := h.Agents.CompleteDraft(c.Request.Context(), userID, c.Param("agent_id"), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListVoices returns the selectable voice catalog.
func (h Handlers) ListVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"voices": agents.VoiceOptions})
}

// CallConfig tells the UI whether live calls are available on this
// deployment. Only the client-side public key is returned, never the
// server API key.
func (h Handlers) CallConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"calls_available": h.Voice.APIKey != "",
		"public_key":      h.Voice.PublicKey,
	})
}
