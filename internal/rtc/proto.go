package rtc

import "encoding/json"

// Inbound is the envelope for frames coming from the client. A non-zero ID
// means the caller expects exactly one ack back; ID zero is fire-and-forget.
type Inbound struct {
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound frame types.
const (
	FrameAck   = "ack"
	FrameEvent = "event"
)

// Client to server event names.
const (
	EventChatJoin            = "chat:join"
	EventChatLeave           = "chat:leave"
	EventMessageSend         = "message:send"
	EventServerSubscribe     = "server:subscribe"
	EventServerUnsubscribe   = "server:unsubscribe"
	EventChannelMsgSubscribe = "channelMessages:subscribe"
	EventChannelMsgUnsub     = "channelMessages:unsubscribe"
	EventChannelMessageSend  = "channelMessage:new"
)

// Server to client event names.
const (
	EventMessageNew            = "message:new"
	EventChannelMessageNew     = "channelMessage:new"
	EventChannelMessageDeleted = "channelMessage:deleted"
	EventServerUpdated         = "server:updated"
	EventServerDeleted         = "server:deleted"
	EventChannelCreated        = "channel:created"
	EventChannelUpdated        = "channel:updated"
	EventChannelDeleted        = "channel:deleted"
	EventChatError             = "chat:error"
)

// Error kinds carried in ack error envelopes.
const (
	ErrKindUnauthorized = "UNAUTHORIZED"
	ErrKindBadRequest   = "BAD_REQUEST"
	ErrKindInternal     = "INTERNAL_ERROR"
	ErrKindRateLimited  = "RATE_LIMITED"
)

// Status reported on successful acks.
const StatusOK = "OK"

// ErrorBody describes a failed ack.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Outbound is the envelope for frames sent to the client: either the ack for
// an inbound frame (matched by ID) or a room broadcast.
type Outbound struct {
	Type   string     `json:"type"`
	ID     int64      `json:"id,omitempty"`
	Status string     `json:"status,omitempty"`
	Event  string     `json:"event,omitempty"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}
