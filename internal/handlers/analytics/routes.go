package handlers_analytics

import (
	"clubpulse/internal/clmiddleware"
	"clubpulse/internal/models/clconfig"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes limit s'applique aux routes d'ingestion, nil pour aucune limite
func (ah *AnalyticsHandler) RegisterRoutes(api *gin.RouterGroup, auth clconfig.AuthConfig, limit gin.HandlerFunc) {
	ingest := api.Group("")
	if limit != nil {
		ingest.Use(limit)
	}

	// suivi anonyme autorisé
	public := ingest.Group("", clmiddleware.OptionalActor(auth.JwtSecret))
	{
		public.POST("/events", ah.TrackEvent)
		public.POST("/pageview", ah.TrackPageView)
		public.POST("/click", ah.TrackClick)
		public.POST("/session", ah.UpdateSession)
	}

	member := ingest.Group("/notification", clmiddleware.RequireActor(auth.JwtSecret))
	{
		member.POST("/open", ah.TrackNotificationOpen)
		member.POST("/click", ah.TrackNotificationClick)
	}

	admin := api.Group("", clmiddleware.RequireActor(auth.JwtSecret), clmiddleware.RequireAdmin(auth))
	{
		admin.GET("/stats", ah.GetStats)
		admin.GET("/events", ah.ListEvents)
		admin.GET("/sessions", ah.ListSessions)
		admin.GET("/campaigns/:campaignId", ah.GetCampaignAnalytics)
		admin.GET("/realtime", ah.GetRealtimeStats)
	}
}
