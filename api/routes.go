package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace_watcher/api/handlers"
	"marketplace_watcher/config"
	"marketplace_watcher/services"
)

// Runner is what the HTTP layer needs from the orchestrator
type Runner interface {
	handlers.BatchRunner
	handlers.MonitorTrigger
}

type Deps struct {
	Server        *config.ServerConfig
	Runner        Runner
	Monitors      *services.MonitorService
	Matches       *services.MatchService
	Notifications *services.NotificationService
}

func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()
	router.Use(Metrics())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = deps.Server.CORSOrigins
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsCfg.AllowCredentials = false
	router.Use(cors.New(corsCfg))

	cronHandler := handlers.NewCronHandler(deps.Runner, "cron")
	monitorHandler := handlers.NewMonitorHandler(deps.Monitors, deps.Runner)
	matchHandler := handlers.NewMatchHandler(deps.Matches)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)

	api := router.Group("/api")
	{
		cron := api.Group("/cron", CronAuth(deps.Server.CronSecret))
		{
			cron.POST("/monitor-runner", cronHandler.RunMonitors)
			cron.GET("/monitor-runner", cronHandler.RunMonitors)
		}

		user := api.Group("", UserAuth(deps.Server.JWTSecret))
		{
			monitors := user.Group("/monitors")
			{
				monitors.GET("", monitorHandler.List)
				monitors.POST("", monitorHandler.Create)
				monitors.GET("/:id", monitorHandler.Get)
				monitors.PATCH("/:id", monitorHandler.Update)
				monitors.PUT("/:id", monitorHandler.Update)
				monitors.DELETE("/:id", monitorHandler.Delete)
				monitors.POST("/:id/toggle", monitorHandler.ToggleActive)
				monitors.POST("/:id/run", monitorHandler.Run)
				monitors.GET("/:id/matches", matchHandler.List)
				monitors.GET("/:id/matches/stats", matchHandler.Stats)
				monitors.POST("/:id/matches/notified", matchHandler.MarkAllNotified)
			}

			user.POST("/matches/:matchId/notified", matchHandler.MarkNotified)

			notifications := user.Group("/notifications")
			{
				notifications.GET("/settings", notificationHandler.GetSettings)
				notifications.PUT("/settings", notificationHandler.UpdateSettings)
				notifications.POST("/test", notificationHandler.SendTest)
			}
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
