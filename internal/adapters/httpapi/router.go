// Package httpapi exposes the call model for inspection and drives
// the simulated radio: dial and ring fabricate legs, the leg routes
// script radio events, and the feed endpoint streams lifecycle frames.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/adapters/feed"
	"github.com/dkeye/callbridge/internal/adapters/radiosim"
	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, mgr *app.CallManager, board *radiosim.Switchboard, radio *radiosim.Control, hub *feed.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{mgr: mgr, board: board, radio: radio}

	log.Info().Str("module", "adapters.httpapi").Msg("router setup")

	api := r.Group("/api")

	api.GET("/sessions", h.listSessions)
	api.GET("/conferences", h.listConferences)
	api.GET("/legs", h.listLegs)

	api.POST("/dial", h.dial)
	api.POST("/ring", h.ring)

	api.POST("/legs/:id/state", h.legState)
	api.POST("/legs/:id/technology", h.legTechnology)
	api.POST("/legs/:id/multiparty", h.legMultiparty)
	api.POST("/legs/:id/disconnect", h.legDisconnect)
	api.POST("/legs/:id/participants", h.legParticipants)
	api.POST("/groups/:id/bind", h.bindGroup)

	api.POST("/sessions/:id/hold", h.sessionOp((*core.Session).Hold))
	api.POST("/sessions/:id/unhold", h.sessionOp((*core.Session).Unhold))
	api.POST("/sessions/:id/hangup", h.sessionOp((*core.Session).Hangup))
	api.POST("/sessions/:id/dtmf", h.sessionDTMF)

	api.POST("/conferences/:id/merge", h.conferenceOp((*core.Conference).Merge))
	api.POST("/conferences/:id/swap", h.conferenceOp((*core.Conference).Swap))
	api.POST("/conferences/:id/hold", h.conferenceOp((*core.Conference).Hold))
	api.POST("/conferences/:id/unhold", h.conferenceOp((*core.Conference).Unhold))

	api.POST("/emergency/activate", h.emergencyActivate)

	api.GET("/ws/feed", func(c *gin.Context) {
		log.Info().Str("module", "adapters.httpapi").Msg("ws feed endpoint hit")
		hub.HandleFeed(ctx, c)
	})

	return r
}
