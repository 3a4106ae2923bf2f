package rtc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/ratelimit"
)

// badRequestError marks a validation failure whose message is safe to show
// the client.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// BadRequest builds a validation error that reaches the client verbatim as a
// BAD_REQUEST ack.
func BadRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// Reply is the one-shot ack capability handed to a handler. For
// fire-and-forget events OK is a no-op and Error surfaces on the chat:error
// side channel instead of an ack.
type Reply struct {
	session *Session
	id      int64

	mu   sync.Mutex
	sent bool
}

func newReply(s *Session, id int64) *Reply {
	return &Reply{session: s, id: id}
}

// Acked reports whether the caller expects an ack for this event.
func (r *Reply) Acked() bool {
	return r.id != 0
}

// OK sends the success envelope. Only the first call on a Reply wins.
func (r *Reply) OK(data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent || r.id == 0 {
		return
	}
	r.sent = true
	r.session.send(Outbound{Type: FrameAck, ID: r.id, Status: StatusOK, Data: data})
}

// Error sends the error envelope, or a chat:error event when no ack is
// expected. Only the first call on a Reply wins.
func (r *Reply) Error(kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return
	}
	r.sent = true
	if r.id == 0 {
		r.session.send(Outbound{Type: FrameEvent, Event: EventChatError, Data: message})
		return
	}
	r.session.send(Outbound{Type: FrameAck, ID: r.id, Error: &ErrorBody{Kind: kind, Message: message}})
}

// HandlerFunc processes one inbound event. Returning an error is equivalent
// to calling reply.Error with the mapped kind; handlers that already replied
// return nil.
type HandlerFunc func(ctx context.Context, s *Session, data []byte, reply *Reply) error

// Dispatcher routes inbound events to handlers. Every handler runs behind
// the rate limiter, and any failure it returns or panics with is converted
// to a protocol error instead of tearing down the connection.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	limiter  *ratelimit.Limiter
	log      *zerolog.Logger
}

// NewDispatcher creates a dispatcher with no handlers registered.
func NewDispatcher(limiter *ratelimit.Limiter, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		limiter:  limiter,
		log:      logger,
	}
}

// Handle registers a handler for an event name.
func (d *Dispatcher) Handle(event string, h HandlerFunc) {
	d.handlers[event] = h
}

// Dispatch processes one inbound frame for the session.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, in Inbound) {
	reply := newReply(s, in.ID)

	h, ok := d.handlers[in.Event]
	if !ok {
		reply.Error(ErrKindBadRequest, "unknown event "+strconv.Quote(in.Event))
		return
	}

	principal := strconv.FormatInt(s.UserID, 10)
	if err := d.limiter.Allow(ctx, principal, in.Event); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			// Fire-and-forget events are silently dropped when over quota.
			if reply.Acked() {
				reply.Error(ErrKindRateLimited, "rate limit exceeded")
			}
			return
		}
		d.fail(s, in, reply, err)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			d.fail(s, in, reply, fmt.Errorf("handler panic: %v", p))
		}
	}()

	if err := h(ctx, s, in.Data, reply); err != nil {
		d.fail(s, in, reply, err)
	}
}

// fail maps a handler failure onto the envelope taxonomy. Unexpected errors
// are logged with full context and reported to the caller only generically.
func (d *Dispatcher) fail(s *Session, in Inbound, reply *Reply, err error) {
	var bad *badRequestError
	switch {
	case access.IsUnauthorized(err):
		reply.Error(ErrKindUnauthorized, err.Error())
	case access.IsNotFound(err):
		// NotFound folds into BAD_REQUEST at the protocol boundary but stays
		// distinguishable in the logs.
		d.log.Debug().Err(err).Str("event", in.Event).Int64("user_id", s.UserID).Msg("resource not found")
		reply.Error(ErrKindBadRequest, err.Error())
	case errors.As(err, &bad):
		reply.Error(ErrKindBadRequest, bad.msg)
	default:
		d.log.Error().Err(err).
			Str("event", in.Event).
			Str("session_id", s.ID).
			Int64("user_id", s.UserID).
			Msg("handler failed")
		reply.Error(ErrKindInternal, "internal error")
	}
}
