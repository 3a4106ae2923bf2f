// Package handlers implements the domain logic behind each client event.
// Every handler follows the same shape: resolve access, validate the
// payload, persist when mutating, publish to the room, reply via the ack.
package handlers

import (
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/store"
)

// Handlers holds the collaborators shared by all domain handlers.
type Handlers struct {
	store    store.Store
	resolver *access.Resolver
	registry *rtc.Registry
	log      *zerolog.Logger

	historyPageSize int
}

// New creates the handler set.
func New(st store.Store, resolver *access.Resolver, registry *rtc.Registry, historyPageSize int, logger *zerolog.Logger) *Handlers {
	if historyPageSize <= 0 {
		historyPageSize = 50
	}
	return &Handlers{
		store:           st,
		resolver:        resolver,
		registry:        registry,
		log:             logger,
		historyPageSize: historyPageSize,
	}
}

// Register wires every client event onto the dispatcher.
func (h *Handlers) Register(d *rtc.Dispatcher) {
	d.Handle(rtc.EventChatJoin, h.ChatJoin)
	d.Handle(rtc.EventChatLeave, h.ChatLeave)
	d.Handle(rtc.EventMessageSend, h.MessageSend)
	d.Handle(rtc.EventServerSubscribe, h.ServerSubscribe)
	d.Handle(rtc.EventServerUnsubscribe, h.ServerUnsubscribe)
	d.Handle(rtc.EventChannelMsgSubscribe, h.ChannelSubscribe)
	d.Handle(rtc.EventChannelMsgUnsub, h.ChannelUnsubscribe)
	d.Handle(rtc.EventChannelMessageSend, h.ChannelMessageSend)
}
