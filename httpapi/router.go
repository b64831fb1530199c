package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gigchat/auth"
	"gigchat/ws"
)

// SetupRouter wires the REST surface and the stream endpoint onto one
// gin engine.
func SetupRouter(handlers *Handlers, stream *ws.Handler, authService *auth.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/register", handlers.Register)
	r.POST("/auth/login", handlers.Login)
	r.GET("/ws", stream.Connect)
	r.POST("/hooks/proposal-accepted", handlers.ProposalAccepted)

	authed := r.Group("/", AuthMiddleware(authService))
	{
		authed.GET("/rooms", handlers.ListRooms)
		authed.POST("/rooms", handlers.CreateRoom)
		authed.GET("/rooms/:id/messages", handlers.GetMessages)
		authed.POST("/rooms/:id/messages", handlers.PostMessage)
		authed.POST("/rooms/:id/read", handlers.MarkRead)
	}

	return r
}
