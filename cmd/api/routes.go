package main

import (
	"voicedash/internal/httpapi"
	"voicedash/internal/livecall"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, live *livecall.Handler) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.RefreshToken)
		authGroup.POST("/logout", h.Logout)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)
		v1.GET("/voices", h.ListVoices)
		v1.GET("/call-config", h.CallConfig)

		agents := v1.Group("/agents")
		{
			agents.GET("", h.ListAgents)
			agents.POST("", h.CreateAgent)
			agents.GET("/most-recent", h.MostRecentAgent)

			agents.POST("/drafts", h.SaveAgentDraft)
			agents.GET("/drafts/latest", h.ResumeAgentDraft)
			agents.POST("/drafts/:agent_id/complete", h.CompleteAgentDraft)

			agents.GET("/:agent_id", h.GetAgent)
			agents.PATCH("/:agent_id", h.UpdateAgent)
			agents.DELETE("/:agent_id", h.DeleteAgent)
			agents.GET("/:agent_id/transcripts", h.ListAgentTranscripts)
		}

		transcripts := v1.Group("/transcripts")
		{
			transcripts.GET("", h.ListTranscripts)
			transcripts.GET("/:transcript_id", h.GetTranscript)
		}

		onboarding := v1.Group("/onboarding")
		{
			onboarding.GET("", h.GetOnboarding)
			onboarding.PUT("", h.SaveOnboarding)
			onboarding.POST("/complete", h.CompleteOnboarding)
		}
	}

	// live call websocket; one call per connection
	r.GET("/ws/call", authMW, live.Handle)
}
