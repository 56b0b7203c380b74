package routes

import (
	"rerolab/handlers"
	"rerolab/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterSlotRoutes registers the slot grid and booking intents. Intents
// need a lab session; reading the grid does not.
func RegisterSlotRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	slots := r.Group("/slots")
	{
		slots.GET("", hb.GetSlotsHandler)
		slots.POST("/refresh", hb.RefreshHandler)

		protected := slots.Group("")
		protected.Use(middleware.RequireSession(hb.Sessions))
		protected.POST("/:id/book", hb.BookSlotHandler)
		protected.POST("/:id/cancel", hb.CancelSlotHandler)
	}
}
