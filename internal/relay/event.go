// Package relay implements the conversation relay hub: it groups client
// connections into per-conversation rooms and fans events out to the other
// members of a room without letting a slow consumer stall anyone else.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound frame types accepted from clients.
const (
	frameJoin    = "join"
	frameLeave   = "leave"
	frameMessage = "message"
	frameTyping  = "typing"
	frameRead    = "read"
)

// Outbound frame types emitted to clients.
const (
	frameJoined      = "joined"
	frameLeft        = "left"
	frameNewMessage  = "new_message"
	frameTypingOut   = "typing"
	frameMessageRead = "message_read"
	frameError       = "error"
)

// Error reasons carried by outbound error frames.
const (
	reasonMalformed    = "malformed"
	reasonForbidden    = "forbidden"
	reasonUserConflict = "user_conflict"
)

var errUnknownType = errors.New("unknown frame type")

// inboundFrame is the wire shape of every client frame. Data is kept opaque
// for messages and holds the typed payload for typing and read frames.
type inboundFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	UserID         string          `json:"userId"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type typingPayload struct {
	IsTyping bool `json:"isTyping"`
}

type readPayload struct {
	MessageID string `json:"messageId"`
}

// Event is the closed set of inbound events the router dispatches. Anything
// that does not parse into one of these variants is rejected.
type Event interface {
	eventKind() string
}

// JoinEvent asks for membership in a conversation room.
type JoinEvent struct {
	ConversationID string
	UserID         string
}

// LeaveEvent gives up membership in a conversation room.
type LeaveEvent struct {
	ConversationID string
	UserID         string
}

// MessageEvent carries an opaque chat payload to relay to the room.
type MessageEvent struct {
	ConversationID string
	UserID         string
	Payload        json.RawMessage
}

// TypingEvent signals that a user started or stopped typing.
type TypingEvent struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}

// ReadReceiptEvent marks a message as read by a user.
type ReadReceiptEvent struct {
	ConversationID string
	UserID         string
	MessageID      string
}

func (JoinEvent) eventKind() string        { return frameJoin }
func (LeaveEvent) eventKind() string       { return frameLeave }
func (MessageEvent) eventKind() string     { return frameMessage }
func (TypingEvent) eventKind() string      { return frameTyping }
func (ReadReceiptEvent) eventKind() string { return frameRead }

// parseEvent decodes a raw client frame into exactly one Event variant.
func parseEvent(raw []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if frame.ConversationID == "" {
		return nil, errors.New("missing conversationId")
	}

	switch frame.Type {
	case frameJoin:
		return JoinEvent{ConversationID: frame.ConversationID, UserID: frame.UserID}, nil

	case frameLeave:
		return LeaveEvent{ConversationID: frame.ConversationID, UserID: frame.UserID}, nil

	case frameMessage:
		return MessageEvent{
			ConversationID: frame.ConversationID,
			UserID:         frame.UserID,
			Payload:        frame.Data,
		}, nil

	case frameTyping:
		var payload typingPayload
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				return nil, fmt.Errorf("decode typing payload: %w", err)
			}
		}
		return TypingEvent{
			ConversationID: frame.ConversationID,
			UserID:         frame.UserID,
			IsTyping:       payload.IsTyping,
		}, nil

	case frameRead:
		var payload readPayload
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				return nil, fmt.Errorf("decode read payload: %w", err)
			}
		}
		if payload.MessageID == "" {
			return nil, errors.New("missing messageId")
		}
		return ReadReceiptEvent{
			ConversationID: frame.ConversationID,
			UserID:         frame.UserID,
			MessageID:      payload.MessageID,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, frame.Type)
	}
}

// outboundFrame is the wire shape of every frame the hub emits.
type outboundFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	IsTyping       *bool           `json:"isTyping,omitempty"`
	MessageID      string          `json:"messageId,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Timestamp      int64           `json:"timestamp,omitempty"`
}

// Outbound is an encoded frame ready for delivery. Presence and error frames
// are exempt from the drop-oldest eviction so connection-state notifications
// are not lost before ordinary chat traffic.
type Outbound struct {
	payload []byte
	exempt  bool
}

// Payload returns the encoded frame bytes.
func (o Outbound) Payload() []byte { return o.payload }

func encodeOutbound(f outboundFrame, exempt bool) (Outbound, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return Outbound{}, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return Outbound{payload: payload, exempt: exempt}, nil
}

func presenceFrame(frameType, conversationID, userID string, ts int64) (Outbound, error) {
	return encodeOutbound(outboundFrame{
		Type:           frameType,
		ConversationID: conversationID,
		UserID:         userID,
		Timestamp:      ts,
	}, true)
}

func errorFrame(reason string) Outbound {
	// The error shape contains nothing that can fail to marshal.
	payload, _ := json.Marshal(outboundFrame{Type: frameError, Reason: reason})
	return Outbound{payload: payload, exempt: true}
}
