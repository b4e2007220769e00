package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/adapters/ws"
	"github.com/seeitsmanish/SongCircle/internal/auth"
	"github.com/seeitsmanish/SongCircle/internal/config"
	"github.com/seeitsmanish/SongCircle/pkg/metrics"
	"github.com/seeitsmanish/SongCircle/pkg/ratelimit"
)

type Deps struct {
	Rooms RoomStore
	Media MetadataFetcher
	JWT   *auth.JWT
	WS    *ws.Controller
}

// SetupRouter wires the gin engine and wraps it with CORS; the finished
// handler is what the HTTP server serves.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) http.Handler {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/ws/room/:name", func(c *gin.Context) {
		deps.WS.HandleRoom(ctx, c)
	})

	limiter := ratelimit.New(cfg.HTTPRateLimit, time.Minute)
	rooms := &RoomsAPI{Registry: deps.Rooms}
	meta := &MetadataAPI{Media: deps.Media}

	api := r.Group("/api")
	api.Use(rateLimitMiddleware(limiter))
	api.Use(AuthRequired(deps.JWT))
	api.POST("/create-room", rooms.CreateRoom)
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/metadata", meta.Lookup)

	log.Info().Str("module", "adapters.http").Msg("router setup")

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(r)
}

func rateLimitMiddleware(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Request.RemoteAddr) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please try again later.",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}
