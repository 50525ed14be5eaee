package relay

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// CanJoinFunc decides whether a user may join a conversation. The membership
// authority lives outside the hub; the default permits everything.
type CanJoinFunc func(userID, conversationID string) bool

func permitAll(string, string) bool { return true }

// router parses inbound frames into typed events and dispatches each to the
// registry or broadcaster. Protocol and authorization failures are answered
// with an error frame to the offending connection only; the connection itself
// is left open so the host layer can decide policy.
type router struct {
	reg     *registry
	bc      *broadcaster
	canJoin CanJoinFunc
	logger  *slog.Logger
	now     func() time.Time

	received    atomic.Int64
	routed      atomic.Int64
	parseErrors atomic.Int64
	rejected    atomic.Int64
}

func newRouter(reg *registry, bc *broadcaster, canJoin CanJoinFunc, logger *slog.Logger) *router {
	if canJoin == nil {
		canJoin = permitAll
	}
	return &router{
		reg:     reg,
		bc:      bc,
		canJoin: canJoin,
		logger:  logger,
		now:     time.Now,
	}
}

// dispatch handles one raw frame from a connection.
func (rt *router) dispatch(c *Conn, raw []byte) {
	rt.received.Add(1)

	ev, err := parseEvent(raw)
	if err != nil {
		rt.parseErrors.Add(1)
		rt.logger.Warn("malformed frame", "connId", c.ID(), "error", err)
		c.Enqueue(errorFrame(reasonMalformed))
		return
	}

	if userID := eventUserID(ev); userID != "" {
		if err := c.bindUser(userID); err != nil {
			rt.rejected.Add(1)
			rt.logger.Warn("userId rebinding rejected",
				"connId", c.ID(), "bound", c.UserID(), "claimed", userID)
			c.Enqueue(errorFrame(reasonUserConflict))
			return
		}
	}

	switch ev := ev.(type) {
	case JoinEvent:
		rt.handleJoin(c, ev)
	case LeaveEvent:
		rt.handleLeave(c, ev)
	case MessageEvent:
		rt.relay(c, outboundFrame{
			Type:           frameNewMessage,
			ConversationID: ev.ConversationID,
			UserID:         ev.UserID,
			Data:           ev.Payload,
		})
	case TypingEvent:
		isTyping := ev.IsTyping
		rt.relay(c, outboundFrame{
			Type:           frameTypingOut,
			ConversationID: ev.ConversationID,
			UserID:         ev.UserID,
			IsTyping:       &isTyping,
		})
	case ReadReceiptEvent:
		rt.relay(c, outboundFrame{
			Type:           frameMessageRead,
			ConversationID: ev.ConversationID,
			UserID:         ev.UserID,
			MessageID:      ev.MessageID,
		})
	}
}

func (rt *router) handleJoin(c *Conn, ev JoinEvent) {
	if !rt.canJoin(ev.UserID, ev.ConversationID) {
		rt.rejected.Add(1)
		rt.logger.Info("join denied",
			"connId", c.ID(), "userId", ev.UserID, "room", ev.ConversationID)
		c.Enqueue(errorFrame(reasonForbidden))
		return
	}

	if !rt.reg.join(ev.ConversationID, c) {
		return
	}
	rt.routed.Add(1)
	rt.logger.Debug("joined room", "connId", c.ID(), "room", ev.ConversationID)

	// Re-joins still announce presence so other members can refresh state.
	rt.presence(frameJoined, ev.ConversationID, ev.UserID, c)
}

func (rt *router) handleLeave(c *Conn, ev LeaveEvent) {
	rt.reg.leave(ev.ConversationID, c)
	rt.routed.Add(1)
	rt.logger.Debug("left room", "connId", c.ID(), "room", ev.ConversationID)

	rt.presence(frameLeft, ev.ConversationID, ev.UserID, c)
}

// presence announces a membership change to the room's post-mutation members.
func (rt *router) presence(frameType, conversationID, userID string, exclude *Conn) {
	f, err := presenceFrame(frameType, conversationID, userID, rt.timestamp())
	if err != nil {
		rt.logger.Warn("encode presence frame", "type", frameType, "error", err)
		return
	}
	rt.bc.broadcast(conversationID, f, exclude)
}

// relay stamps the frame with the dispatch-time timestamp and fans it out to
// everyone else in the room.
func (rt *router) relay(c *Conn, f outboundFrame) {
	f.Timestamp = rt.timestamp()

	out, err := encodeOutbound(f, false)
	if err != nil {
		rt.parseErrors.Add(1)
		rt.logger.Warn("encode frame", "type", f.Type, "connId", c.ID(), "error", err)
		c.Enqueue(errorFrame(reasonMalformed))
		return
	}

	report := rt.bc.broadcast(f.ConversationID, out, c)
	rt.routed.Add(1)
	if report.Dropped > 0 {
		rt.logger.Debug("frames dropped under backpressure",
			"room", f.ConversationID, "dropped", report.Dropped)
	}
}

func (rt *router) timestamp() int64 {
	return rt.now().UnixMilli()
}

func eventUserID(ev Event) string {
	switch ev := ev.(type) {
	case JoinEvent:
		return ev.UserID
	case LeaveEvent:
		return ev.UserID
	case MessageEvent:
		return ev.UserID
	case TypingEvent:
		return ev.UserID
	case ReadReceiptEvent:
		return ev.UserID
	}
	return ""
}
