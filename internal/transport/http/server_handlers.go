package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/store"
)

// ServerHandlers provides the HTTP mutation surface for servers. Updates and
// deletions are broadcast to the server room so subscribed sockets observe
// them without polling.
type ServerHandlers struct {
	store    store.Store
	resolver *access.Resolver
	registry *rtc.Registry
	log      *zerolog.Logger
}

// NewServerHandlers creates server handlers.
func NewServerHandlers(st store.Store, resolver *access.Resolver, registry *rtc.Registry, logger *zerolog.Logger) *ServerHandlers {
	return &ServerHandlers{store: st, resolver: resolver, registry: registry, log: logger}
}

// ServerUpdateRequest is the update request body.
type ServerUpdateRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description" binding:"max=512"`
	IconURL     string `json:"iconUrl"`
}

func (h *ServerHandlers) abortAccess(c *gin.Context, err error) {
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

func (h *ServerHandlers) resolveOwner(c *gin.Context) (*access.ServerResult, bool) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil, false
	}
	res, err := h.resolver.Server(c.Request.Context(), c.Param("serverID"), uid)
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

// UpdateServer handles server metadata updates.
// PATCH /api/servers/:serverID
func (h *ServerHandlers) UpdateServer(c *gin.Context) {
	res, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	var req ServerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	srv := res.Server
	srv.Name = req.Name
	srv.Description = req.Description
	srv.IconURL = req.IconURL
	if err := h.store.UpdateServer(c.Request.Context(), srv); err != nil {
		h.log.Error().Err(err).Int64("server_id", srv.ID).Msg("failed to update server")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.registry.Publish(rtc.ServerRoom(srv.ID), rtc.EventServerUpdated, gin.H{
		"id":          srv.ID,
		"shortId":     srv.ShortID,
		"name":        srv.Name,
		"description": srv.Description,
		"iconUrl":     srv.IconURL,
	}, nil)

	c.JSON(http.StatusOK, gin.H{
		"id":          srv.ID,
		"shortId":     srv.ShortID,
		"name":        srv.Name,
		"description": srv.Description,
		"iconUrl":     srv.IconURL,
	})
}

// DeleteServer handles server deletion. Subscribers are notified before the
// room itself is torn down with the next registry sweep of empty rooms.
// DELETE /api/servers/:serverID
func (h *ServerHandlers) DeleteServer(c *gin.Context) {
	res, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	srv := res.Server
	if err := h.store.DeleteServer(c.Request.Context(), srv.ID); err != nil {
		h.log.Error().Err(err).Int64("server_id", srv.ID).Msg("failed to delete server")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.registry.Publish(rtc.ServerRoom(srv.ID), rtc.EventServerDeleted, srv.ID, nil)

	h.log.Info().Int64("server_id", srv.ID).Msg("server deleted")
	c.Status(http.StatusNoContent)
}
