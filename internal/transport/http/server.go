package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/auth"
	"github.com/driftchat/drift-server/internal/config"
)

// Deps carries everything the HTTP server routes to.
type Deps struct {
	Gate     *auth.Gate
	WS       http.Handler
	Channels *ChannelHandlers
	Servers  *ServerHandlers
	Messages *MessageHandlers
}

// NewServer builds the HTTP server: health check, the websocket endpoint and
// the authenticated REST surface that bridges into socket broadcasts.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/ws", gin.WrapH(deps.WS))
	engine.Static("/files", cfg.UploadDir)

	api := engine.Group("/api")
	api.Use(AuthMiddleware(deps.Gate, logger))
	{
		api.GET("/servers/:serverID/channels", deps.Channels.ListChannels)
		api.POST("/servers/:serverID/channels", deps.Channels.CreateChannel)
		api.PATCH("/channels/:channelID", deps.Channels.UpdateChannel)
		api.DELETE("/channels/:channelID", deps.Channels.DeleteChannel)

		api.PATCH("/servers/:serverID", deps.Servers.UpdateServer)
		api.DELETE("/servers/:serverID", deps.Servers.DeleteServer)

		api.POST("/channels/:channelID/messages", deps.Messages.CreateChannelMessage)
		api.DELETE("/messages/:messageID", deps.Messages.DeleteChannelMessage)
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
