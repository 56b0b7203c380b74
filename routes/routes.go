package routes

import (
	"time"

	"rerolab/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterSessionRoutes registers the login state endpoints.
func RegisterSessionRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/session")
	{
		api.GET("", hb.GetSessionHandler)
		api.POST("/login", hb.LoginHandler)
		api.POST("/register", hb.RegisterHandler)
		api.POST("/logout", hb.LogoutHandler)
	}
}

// RegisterStreamRoutes registers the live video endpoints.
func RegisterStreamRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/stream")
	{
		api.GET("/frame", hb.GetFrameHandler)
		api.GET("/stats", hb.GetStreamStatsHandler)
		api.POST("/start", hb.StartStreamHandler)
		api.POST("/stop", hb.StopStreamHandler)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Frame-Seq", "X-Frame-Quality"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterSessionRoutes(r, hb)
	RegisterSlotRoutes(r, hb)
	RegisterStreamRoutes(r, hb)

	r.POST("/connection/retry", hb.RetryHandler)
	r.POST("/connection/disconnect", hb.DisconnectHandler)
	r.GET("/ws", hb.SlotsSocketHandler)
}
