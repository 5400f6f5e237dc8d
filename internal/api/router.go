package api

import (
	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/api/handler"
	"github.com/miso-46/AI-minutes/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps groups what the router needs to build its handlers.
type RouterDeps struct {
	Pipeline       handler.VideoSubmitter
	Minutes        handler.MinutesReader
	Chat           handler.Chatter
	Summary        handler.Summarizer
	Verifier       middleware.TokenVerifier
	HealthChecks   map[string]handler.HealthCheck
	CORS           middleware.CORSConfig
	MaxUploadBytes int64
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, mode string) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(deps.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	videoHandler := handler.NewVideoHandler(deps.Pipeline, deps.Minutes, deps.MaxUploadBytes)
	minutesHandler := handler.NewMinutesHandler(deps.Minutes)
	chatHandler := handler.NewChatHandler(deps.Chat)
	summaryHandler := handler.NewSummaryHandler(deps.Summary)

	// Unauthenticated
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireAuth(deps.Verifier))
	{
		// Videos
		v1.POST("/videos", videoHandler.Upload)
		v1.GET("/videos/:id/status", videoHandler.Status)
		v1.GET("/videos/:id/result", videoHandler.Result)

		// Minutes
		v1.GET("/minutes", minutesHandler.List)
		v1.GET("/minutes/:id", minutesHandler.Detail)

		// Chat
		v1.POST("/chat/start", chatHandler.Start)
		v1.POST("/chat/send", chatHandler.Send)
		v1.GET("/chat/messages/:id/references", chatHandler.References)

		// Summaries
		v1.POST("/summaries", summaryHandler.Generate)
	}

	return r
}
