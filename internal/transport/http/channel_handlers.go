package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/store"
)

// ChannelHandlers provides the HTTP mutation surface for channels. After each
// committed mutation the handler publishes the matching domain event into the
// room registry, the bridge that keeps socket subscribers in sync with CRUD
// changes. Publishing here skips the rate limiter on purpose: these are not
// client-originated socket events.
type ChannelHandlers struct {
	store    store.Store
	resolver *access.Resolver
	registry *rtc.Registry
	log      *zerolog.Logger
}

// NewChannelHandlers creates channel handlers.
func NewChannelHandlers(st store.Store, resolver *access.Resolver, registry *rtc.Registry, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{store: st, resolver: resolver, registry: registry, log: logger}
}

// ChannelRequest is the create/update request body.
type ChannelRequest struct {
	Name              string  `json:"name" binding:"required,min=1,max=64"`
	Order             int     `json:"order"`
	DisallowedRoleIDs []int64 `json:"disallowedRoleIds"`
}

func (h *ChannelHandlers) abortAccess(c *gin.Context, err error) {
	switch {
	case access.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case access.IsUnauthorized(err):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Msg("access resolution failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// resolveOwner resolves server access and requires the caller to be the owner.
func (h *ChannelHandlers) resolveOwner(c *gin.Context, serverRef string) (*access.ServerResult, bool) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil, false
	}
	res, err := h.resolver.Server(c.Request.Context(), serverRef, uid)
	if err != nil {
		h.abortAccess(c, err)
		return nil, false
	}
	if res.Server.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "owner only"})
		return nil, false
	}
	return res, true
}

// CreateChannel handles channel creation.
// POST /api/servers/:serverID/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	res, ok := h.resolveOwner(c, c.Param("serverID"))
	if !ok {
		return
	}

	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ch, err := h.store.CreateChannel(c.Request.Context(), res.Server.ID, req.Name, req.Order, req.DisallowedRoleIDs)
	if err != nil {
		h.log.Error().Err(err).Int64("server_id", res.Server.ID).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	view := rtc.NewChannelView(ch)
	h.registry.Publish(rtc.ServerRoom(res.Server.ID), rtc.EventChannelCreated, view, nil)

	h.log.Info().Int64("channel_id", ch.ID).Int64("server_id", res.Server.ID).Msg("channel created")
	c.JSON(http.StatusCreated, view)
}

// ListChannels handles listing the channels visible to the caller. The same
// role filter backs the socket server:subscribe listing.
// GET /api/servers/:serverID/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	res, err := h.resolver.Server(c.Request.Context(), c.Param("serverID"), uid)
	if err != nil {
		h.abortAccess(c, err)
		return
	}

	channels, err := h.resolver.VisibleChannels(c.Request.Context(), res.Server.ID, res.Membership)
	if err != nil {
		h.log.Error().Err(err).Int64("server_id", res.Server.ID).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	views := make([]rtc.ChannelView, 0, len(channels))
	for _, ch := range channels {
		views = append(views, rtc.NewChannelView(ch))
	}
	c.JSON(http.StatusOK, views)
}

// UpdateChannel handles channel updates.
// PATCH /api/channels/:channelID
func (h *ChannelHandlers) UpdateChannel(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("channelID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	ch, err := h.store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if _, ok := h.resolveOwner(c, strconv.FormatInt(ch.ServerID, 10)); !ok {
		return
	}

	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ch.Name = req.Name
	ch.Order = req.Order
	ch.DisallowedRoleIDs = req.DisallowedRoleIDs
	if err := h.store.UpdateChannel(c.Request.Context(), ch); err != nil {
		h.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("failed to update channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	view := rtc.NewChannelView(ch)
	h.registry.Publish(rtc.ServerRoom(ch.ServerID), rtc.EventChannelUpdated, view, nil)

	c.JSON(http.StatusOK, view)
}

// DeleteChannel handles channel deletion.
// DELETE /api/channels/:channelID
func (h *ChannelHandlers) DeleteChannel(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("channelID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	ch, err := h.store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("failed to load channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if _, ok := h.resolveOwner(c, strconv.FormatInt(ch.ServerID, 10)); !ok {
		return
	}

	if err := h.store.DeleteChannel(c.Request.Context(), ch.ID); err != nil {
		h.log.Error().Err(err).Int64("channel_id", ch.ID).Msg("failed to delete channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.registry.Publish(rtc.ServerRoom(ch.ServerID), rtc.EventChannelDeleted, ch.ID, nil)

	c.Status(http.StatusNoContent)
}
