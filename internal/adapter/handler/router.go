package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-insights/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg             *config.Config
	meetingHandler  *Meeting
	analysisHandler *Analysis
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, meetingHandler *Meeting, analysisHandler *Analysis) *Router {
	return &Router{
		cfg:             cfg,
		meetingHandler:  meetingHandler,
		analysisHandler: analysisHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")
	rt.setupMeetingRoutes(v1)
	rt.setupAnalysisRoutes(v1)
}

func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")

	meetings.POST("", rt.meetingHandler.Create)
	meetings.GET("", rt.meetingHandler.List)
	meetings.GET("/:id", rt.meetingHandler.Get)
	meetings.POST("/:id/audio", rt.meetingHandler.UploadAudio)
	meetings.GET("/:id/status/stream", rt.meetingHandler.StreamStatus)

	meetings.POST("/:id/process", rt.analysisHandler.Process)
	meetings.GET("/:id/analysis", rt.analysisHandler.GetByMeeting)
}

func (rt *Router) setupAnalysisRoutes(g *echo.Group) {
	analyses := g.Group("/analyses")
	analyses.GET("/:id/segments", rt.analysisHandler.ListSegments)
	analyses.GET("/:id/action-items", rt.analysisHandler.ListActionItems)

	g.PATCH("/action-items/:id", rt.analysisHandler.UpdateActionItem)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
