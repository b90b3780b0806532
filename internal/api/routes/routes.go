package routes

import (
	"net/http"
	"strconv"

	"chat-sync-service/internal/api/middleware"
	"chat-sync-service/internal/realtime"
	"chat-sync-service/internal/services"
	"chat-sync-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Router struct {
	engine   *gin.Engine
	hub      *realtime.Hub
	presence *services.PresenceCache
	secret   string
}

func NewRouter(hub *realtime.Hub, presence *services.PresenceCache, jwtSecret string) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Router{
		engine:   engine,
		hub:      hub,
		presence: presence,
		secret:   jwtSecret,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Presence snapshots for HTTP-only collaborators
	r.engine.GET("/presence", r.handlePresence)
	r.engine.GET("/presence/:userId", r.handleUserPresence)

	// WebSocket endpoint; identity is established before the upgrade
	r.engine.GET("/ws", middleware.WSAuth(r.secret), r.handleWebSocket)
}

func (r *Router) handlePresence(c *gin.Context) {
	body := gin.H{"online": r.hub.Registry().OnlineUsers()}

	if r.presence != nil {
		cluster, err := r.presence.GetOnlineUsers(c.Request.Context())
		if err == nil {
			body["cluster"] = cluster
		}
	}

	response.OK(c, body)
}

// handleUserPresence answers for one user: the local registry first, the
// shared cache second so users connected to sibling instances still show up.
func (r *Router) handleUserPresence(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if _, online := r.hub.Registry().Resolve(uint(userID)); online {
		response.OK(c, gin.H{"userId": userID, "online": true})
		return
	}

	if r.presence != nil {
		online, err := r.presence.IsUserOnline(c.Request.Context(), uint(userID))
		if err != nil {
			response.InternalError(c, "presence cache unavailable")
			return
		}
		response.OK(c, gin.H{"userId": userID, "online": online})
		return
	}

	response.OK(c, gin.H{"userId": userID, "online": false})
}

func (r *Router) handleWebSocket(c *gin.Context) {
	userID, ok := c.Get("user_id")
	if !ok {
		response.Unauthorized(c, "missing user identity")
		return
	}

	realtime.ServeWS(r.hub, c.Writer, c.Request, userID.(uint))
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
