package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
)

type RouterConfig struct {
	AllowedOrigins []string
	// APIKey guards the booking endpoints when non-empty.
	APIKey  string
	Metrics *metrics.Metrics
}

func SetupRouter(cfg RouterConfig, callController *CallController, signalingController *SignalingController, userController *UserController) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = cfg.AllowedOrigins
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			config.AllowOrigins = nil
			config.AllowAllOrigins = true
			break
		}
	}
	config.AllowCredentials = !config.AllowAllOrigins
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
		"X-API-Key",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if signalingController != nil {
		router.GET("/ws", signalingController.Connect)
	}

	api := router.Group("/api")

	if callController != nil {
		calls := api.Group("/calls")
		calls.GET("/ice-servers", callController.ICEServers)
		calls.GET("/rooms/:roomID", callController.GetRoom)
		calls.POST("/initiate", requireAPIKey(cfg.APIKey), callController.InitiateCall)
	}

	if userController != nil {
		users := api.Group("/users", requireAPIKey(cfg.APIKey))
		users.POST("/create", userController.CreateUser)
		users.GET("/:userID", userController.GetUser)
		users.PUT("/:userID", userController.UpdateUser)
	}

	return router
}

func requireAPIKey(key string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if key == "" {
			ctx.Next()
			return
		}
		got := ctx.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		ctx.Next()
	}
}
