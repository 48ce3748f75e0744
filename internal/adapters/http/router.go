package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/skatehub/gateway/internal/adapters/signal"
	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/config"
	"github.com/skatehub/gateway/internal/metrics"
)

const (
	sessionName = "SkateGateway"
	deviceKey   = "device_id"
)

// DeviceIDMiddleware gives every browser a stable device id kept in the
// signed session cookie. Sessions are keyed by it in logs and audit.
func DeviceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		id, _ := s.Get(deviceKey).(string)
		if id == "" {
			id = uuid.NewString()
			s.Set(deviceKey, id)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save device cookie")
			}
		}
		c.Set(signal.DeviceIDKey, id)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController, rooms *app.RoomRegistry, reg *prometheus.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Admission is limited per client address, so forwarding headers only
	// count when they come from a configured proxy.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Strs("trusted_proxies", cfg.TrustedProxies).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", handleHealth)
	if reg != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 30, HttpOnly: true})

	api := r.Group("/api")
	api.Use(sessions.Sessions(sessionName, store), DeviceIDMiddleware())

	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("device", c.GetString(signal.DeviceIDKey)).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c)
	})
	api.GET("/stats", handleStats(rooms))
	api.GET("/rooms", handleRooms(rooms))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
