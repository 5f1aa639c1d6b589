package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"call-service/internal/config"
	"call-service/internal/handler"
	"call-service/internal/middleware"
	"call-service/internal/ws"
)

// Setup wires middleware and routes. Handlers and services are built in
// main; the router only maps them onto paths.
func Setup(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	validator middleware.TokenValidator,
	wsHandler *ws.WSHandler,
	callHandler *handler.CallHandler,
	friendHandler *handler.FriendHandler,
	presenceHandler *handler.PresenceHandler,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.MetricsMiddleware())

	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", middleware.MetricsHandler())

	// API routes with base path
	api := r.Group(cfg.Server.BasePath)
	{
		// Health under base path
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket endpoint (token validated in the handshake, not the
		// auth middleware, since browsers cannot set headers here)
		api.GET("/ws", wsHandler.HandleWebSocket)

		// Authenticated routes
		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(validator))
		{
			// Availability and matching
			authenticated.PUT("/availability", callHandler.UpdateAvailability)
			authenticated.GET("/candidates", callHandler.GetCandidates)

			// Call lifecycle (static routes before dynamic ones)
			authenticated.POST("", callHandler.InitiateCall)
			authenticated.POST("/random", callHandler.InitiateRandomCall)
			authenticated.GET("/history", callHandler.GetCallHistory)
			authenticated.POST("/:callId/respond", callHandler.RespondCall)
			authenticated.POST("/:callId/end", callHandler.EndCall)
			authenticated.POST("/:callId/rate", callHandler.RateCall)
			authenticated.GET("/:callId/token", callHandler.GetMediaToken)

			// Friend routes
			authenticated.GET("/friends", friendHandler.ListFriends)
			authenticated.POST("/friends/requests", friendHandler.SendFriendRequest)
			authenticated.POST("/friends/requests/:connectionId/respond", friendHandler.RespondFriendRequest)
			authenticated.DELETE("/friends/:userId", friendHandler.RemoveFriend)

			// Fanout hook for subscription-affecting flows
			authenticated.POST("/presence/notify/:userId", presenceHandler.NotifyEligibilityChange)
		}
	}

	return r
}
