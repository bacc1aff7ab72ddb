package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/roomgate/internal/handlers"
)

type Endpoints struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Room        *handlers.RoomHandler
	JoinRequest *handlers.JoinRequestHandler
	WS          *handlers.WebSocketHandler

	AuthMW    gin.HandlerFunc
	WSAuthMW  gin.HandlerFunc
	JoinLimit gin.HandlerFunc
}

func APIEndpoints(r *gin.Engine, e Endpoints) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", e.Auth.Register)
		authGroup.POST("/login", e.Auth.Login)
		authGroup.POST("/guest", e.Auth.Guest)
		authGroup.POST("/logout", e.AuthMW, e.Auth.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1", e.AuthMW)
	{
		users := api.Group("/users")
		users.GET("", e.User.SearchUsers)
		users.GET("/me", e.User.GetMe)
		users.PATCH("/me", e.User.UpdateMe)
		users.GET("/:id", e.User.GetUser)

		rooms := api.Group("/rooms")
		rooms.POST("", e.Room.CreateRoom)
		rooms.GET("/:code", e.Room.GetRoom)
		rooms.DELETE("/:code", e.Room.DeleteRoom)
		rooms.POST("/:code/join", e.JoinLimit, e.Room.JoinRoom)
		rooms.POST("/:code/leave", e.Room.LeaveRoom)
		rooms.POST("/:code/admin", e.Room.TransferAdmin)

		requests := rooms.Group("/:code/requests")
		requests.GET("", e.JoinRequest.ListPending)
		requests.GET("/next", e.JoinRequest.Next)
		requests.GET("/:id", e.JoinRequest.Get)
		requests.GET("/:id/wait", e.JoinRequest.Wait)
		requests.GET("/:id/credentials", e.JoinRequest.Credentials)
		requests.POST("/:id/approve", e.JoinRequest.Approve)
		requests.POST("/:id/reject", e.JoinRequest.Reject)
		requests.DELETE("/:id", e.JoinRequest.Delete)
	}

	r.GET("/ws", e.WSAuthMW, e.WS.HandleWebSocket)
}
