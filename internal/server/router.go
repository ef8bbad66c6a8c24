package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) SetUpRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestId())
	router.Use(Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealthz)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})

	router.GET("/ws", s.handleViewer)
	if s.deps.Live != nil && s.deps.Decode != nil {
		router.GET("/ws/live", s.handleLive)
	}

	if s.deps.Aggregator != nil {
		router.POST("/api/dashboard/update", s.handleDashboardUpdate)
	}

	apiV1 := router.Group("/api/v1")
	s.SetUpApiV1Router(apiV1)

	return router
}

func (s *Server) SetUpApiV1Router(apiV1 *gin.RouterGroup) {
	if s.deps.Batch != nil && s.deps.Jobs != nil {
		apiV1.POST("/upload", s.handleUpload)
		apiV1.GET("/upload/:job_id", s.handleGetUploadJob)
	}

	if s.deps.Alerts != nil {
		v1Alerts := apiV1.Group("/alerts")
		v1Alerts.GET("", s.handleListAlerts)
		v1Alerts.POST("", s.handleCreateAlert)
		v1Alerts.GET("/:alert_id", SetAlertIdToContext(), s.handleGetAlert)
		v1Alerts.DELETE("/:alert_id", SetAlertIdToContext(), s.handleDismissAlert)
	}

	if s.deps.Aggregator != nil {
		apiV1.GET("/dashboard/:date", s.handleGetDashboard)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	total, ready := s.deps.Hub.Count()
	c.JSON(200, gin.H{
		"message": "ok",
		"viewers": total,
		"ready":   ready,
	})
}
