package routes

import (
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/paysplit/paysplit_backend/controllers"
	"github.com/paysplit/paysplit_backend/middleware"
	"github.com/paysplit/paysplit_backend/models"
	"github.com/paysplit/paysplit_backend/websocket"
)

// RegisterTreeRoutes sets up all tree- and node-related protected routes
func RegisterTreeRoutes(e *echo.Echo, db *mongo.Client, redisClient *redis.Client, hub *websocket.Hub) {
	treeController := controllers.NewTreeController(db, redisClient, hub)

	// Protected routes group
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())

	// Tree documents
	r.POST("/trees", treeController.CreateTree)
	r.GET("/trees", treeController.GetTrees)
	r.GET("/trees/:id", treeController.GetTree)
	r.PUT("/trees/:id", treeController.UpdateTree)
	r.DELETE("/trees/:id", treeController.DeleteTree)
	r.POST("/trees/:id/restore", treeController.RestoreTree)
	r.POST("/trees/:id/duplicate", treeController.DuplicateTree)
	r.PUT("/trees/:id/payout", treeController.UpdatePayout)

	// Resolution and export
	r.GET("/trees/:id/amounts", treeController.GetAmounts)
	r.GET("/trees/:id/export", treeController.ExportTree)

	// Node mutations
	r.POST("/trees/:id/nodes", treeController.AddNode)
	r.PUT("/trees/:id/nodes/:nodeId", treeController.UpdateNode)
	r.DELETE("/trees/:id/nodes/:nodeId", treeController.DeleteNode)
	r.POST("/trees/:id/nodes/:nodeId/duplicate", treeController.DuplicateNode)
	r.POST("/trees/:id/connect", treeController.ConnectNodes)
	r.POST("/trees/:id/nodes/:nodeId/disconnect", treeController.DisconnectNode)
	r.PUT("/trees/:id/nodes/:nodeId/children/order", treeController.ReorderChildren)
	r.POST("/trees/:id/nodes/:nodeId/expand", treeController.ExpandNode)

	// WebSocket subscription for recompute pushes
	r.GET("/trees/:id/ws", func(c echo.Context) error {
		userID, err := middleware.ExtractUserID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Unauthorized",
			})
		}
		return websocket.HandleWebSocket(c, hub, c.Param("id"), userID)
	})
}
