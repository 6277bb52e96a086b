package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/platform/startup"
	"github.com/SlpAus/trailhead-backend/internal/trip"
	"github.com/SlpAus/trailhead-backend/internal/vote"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP engine with every route mounted.
func NewRouter(app *startup.App) *gin.Engine {
	if app.Config.Server.Mode != "" {
		gin.SetMode(app.Config.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", identity.ServiceKeyHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(identity.Middleware(app.Verifier, app.Log))

	SetupRoutes(r, app)
	return r
}

// SetupRoutes registers the API routes.
func SetupRoutes(router *gin.Engine, app *startup.App) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"remote":     app.Health.Status(),
			"failedOver": app.Gateway.FailedOver(),
		})
	})

	api := router.Group("/api")
	{
		contentRoutes := api.Group("/content")
		contentHandler := content.NewHandler(app.Content)
		contentHandler.Register(contentRoutes)
		contentHandler.RegisterCounters(contentRoutes.Group("", identity.RequireServiceKey(app.Config.Auth.ServiceKey, app.Log)))
		vote.NewHandler(app.Votes).Register(contentRoutes)

		trip.NewHandler(app.Trips).Register(api.Group("/trips"))
	}
}
