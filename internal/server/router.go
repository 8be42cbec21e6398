package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/dockerlab-backend/internal/handlers"
	"github.com/yungbote/dockerlab-backend/internal/inspector"
)

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})
}

type LabRouterConfig struct {
	LabHandler    *handlers.LabHandler
	Inspector     inspector.Inspector
	MQTTConnected func() bool
	Tracing       bool
}

// NewLabRouter builds the learner-facing API. Everything is public: the
// lab runs on the learner's own machine.
func NewLabRouter(cfg LabRouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())
	if cfg.Tracing {
		router.Use(otelgin.Middleware("dockerlab-lab"))
	}

	router.GET("/healthcheck", handlers.LabHealth(cfg.Inspector, cfg.MQTTConnected))

	api := router.Group("/api")
	{
		api.POST("/submit", cfg.LabHandler.Submit)
		api.POST("/verify", cfg.LabHandler.Verify)
		api.GET("/progress", cfg.LabHandler.Progress)
		api.GET("/exercises", cfg.LabHandler.Exercises)
		api.GET("/exercises/:id/hint", cfg.LabHandler.Hint)
	}

	return router
}

type MonitorRouterConfig struct {
	InstructorHandler *handlers.InstructorHandler
	SSEHandler        *handlers.SSEHandler
	Degraded          func() bool
	Tracing           bool
}

// NewMonitorRouter builds the instructor API. It is meant to sit behind
// the classroom network boundary; there is no per-request auth.
func NewMonitorRouter(cfg MonitorRouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())
	if cfg.Tracing {
		router.Use(otelgin.Middleware("dockerlab-monitor"))
	}

	router.GET("/healthcheck", handlers.MonitorHealth(cfg.Degraded))
	router.GET("/sse/stream", cfg.SSEHandler.Stream)

	api := router.Group("/api")
	{
		api.GET("/students", cfg.InstructorHandler.ListStudents)
		api.GET("/students/online", cfg.InstructorHandler.ListOnlineStudents)
		api.GET("/students/:id", cfg.InstructorHandler.GetStudent)
		api.DELETE("/students/:id", cfg.InstructorHandler.DeleteStudent)
		api.GET("/leaderboard", cfg.InstructorHandler.Leaderboard)
		api.GET("/statistics", cfg.InstructorHandler.Statistics)
		api.GET("/exercises/progress", cfg.InstructorHandler.ExerciseProgress)
		api.GET("/events/recent", cfg.InstructorHandler.RecentEvents)
		api.GET("/activity", cfg.InstructorHandler.Activity)
	}

	return router
}
