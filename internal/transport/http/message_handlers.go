package http

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/filestore"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/store"
)

const maxAttachments = 10

// MessageHandlers provides the HTTP surface for channel messages with file
// attachments. Multipart uploads cannot travel over the socket protocol, so
// posting goes through here and the committed message is broadcast to the
// channel's message room exactly like a socket-originated one.
type MessageHandlers struct {
	store    store.Store
	resolver *access.Resolver
	registry *rtc.Registry
	files    filestore.Storage
	log      *zerolog.Logger
}

// NewMessageHandlers creates message handlers.
func NewMessageHandlers(st store.Store, resolver *access.Resolver, registry *rtc.Registry, files filestore.Storage, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{store: st, resolver: resolver, registry: registry, files: files, log: logger}
}

func (h *MessageHandlers) abortAccess(c *gin.Context, err error) {
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

// CreateChannelMessage handles posting a channel message with attachments.
// The multipart form carries a "text" field and up to maxAttachments files
// under "attachments".
// POST /api/channels/:channelID/messages
func (h *MessageHandlers) CreateChannelMessage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	channelID, err := strconv.ParseInt(c.Param("channelID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	res, err := h.resolver.Channel(c.Request.Context(), channelID, uid)
	if err != nil {
		h.abortAccess(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	files := form.File["attachments"]
	if text == "" && len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text or attachments required"})
		return
	}
	if len(files) > maxAttachments {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("at most %d attachments", maxAttachments)})
		return
	}

	attachments := make([]store.Attachment, 0, len(files))
	saved := make([]string, 0, len(files))
	for _, fh := range files {
		key := path.Join("attachments", uuid.NewString()+path.Ext(fh.Filename))
		src, err := fh.Open()
		if err != nil {
			h.cleanupSaved(c, saved)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable attachment"})
			return
		}
		url, err := h.files.Save(c.Request.Context(), key, src)
		src.Close()
		if err != nil {
			h.cleanupSaved(c, saved)
			h.log.Error().Err(err).Str("key", key).Msg("failed to store attachment")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		saved = append(saved, key)
		attachments = append(attachments, store.Attachment{Key: key, URL: url})
	}

	msg, err := h.store.CreateChannelMessage(c.Request.Context(), res.Channel.ID, res.Membership.ID, text, attachments)
	if err != nil {
		h.cleanupSaved(c, saved)
		h.log.Error().Err(err).Int64("channel_id", res.Channel.ID).Msg("failed to create channel message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	view := rtc.NewChannelMessageView(msg)
	h.registry.Publish(rtc.ChannelMessagesRoom(res.Channel.ID), rtc.EventChannelMessageNew, view, nil)

	c.JSON(http.StatusCreated, view)
}

// DeleteChannelMessage handles message deletion by its author or the server
// owner. Attachment blobs are removed after the row is gone.
// DELETE /api/messages/:messageID
func (h *MessageHandlers) DeleteChannelMessage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	messageID, err := strconv.ParseInt(c.Param("messageID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	msg, err := h.store.GetChannelMessage(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", messageID).Msg("failed to load channel message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	res, err := h.resolver.Channel(c.Request.Context(), msg.ChannelID, uid)
	if err != nil {
		h.abortAccess(c, err)
		return
	}
	if msg.AuthorID != uid && res.Server.OwnerID != uid {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "author or owner only"})
		return
	}

	attachments, err := h.store.DeleteChannelMessage(c.Request.Context(), msg.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to delete channel message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	for _, a := range attachments {
		if err := h.files.Delete(c.Request.Context(), a.Key); err != nil {
			h.log.Warn().Err(err).Str("key", a.Key).Msg("failed to delete attachment blob")
		}
	}

	h.registry.Publish(rtc.ChannelMessagesRoom(msg.ChannelID), rtc.EventChannelMessageDeleted, msg.ID, nil)

	c.Status(http.StatusNoContent)
}

func (h *MessageHandlers) cleanupSaved(c *gin.Context, keys []string) {
	for _, key := range keys {
		if err := h.files.Delete(c.Request.Context(), key); err != nil {
			h.log.Warn().Err(err).Str("key", key).Msg("failed to clean up attachment blob")
		}
	}
}
