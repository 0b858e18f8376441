package domain

import (
	"encoding/json"
	"time"
)

const (
	// ProtocolVersion is the only payload version the chatbot backend accepts.
	ProtocolVersion = "v2"

	// EventSend tags an outgoing user message.
	EventSend = "send"

	// DefaultUserIP is used when the caller cannot determine a real source
	// address.
	DefaultUserIP = "127.0.0.1"
)

// BubbleKind classifies a bubble in a chatbot payload. The backend may send
// kinds this gateway does not know; those map to BubbleOther.
type BubbleKind string

const (
	BubbleText  BubbleKind = "text"
	BubbleOther BubbleKind = "other"
)

// Bubble is one typed element of a chatbot payload. This gateway only ever
// produces the text kind.
type Bubble struct {
	Type string     `json:"type"`
	Data BubbleData `json:"data"`
}

type BubbleData struct {
	Description string `json:"description"`
}

// Kind maps the wire type onto a known kind.
func (b Bubble) Kind() BubbleKind {
	if b.Type == string(BubbleText) {
		return BubbleText
	}
	return BubbleOther
}

// TextBubble builds a text bubble carrying the given description verbatim.
func TextBubble(description string) Bubble {
	return Bubble{Type: string(BubbleText), Data: BubbleData{Description: description}}
}

// OutgoingMessage is the envelope sent to the chatbot backend for one user
// message.
type OutgoingMessage struct {
	Version   string   `json:"version"`
	UserID    string   `json:"userId"`
	UserIP    string   `json:"userIp"`
	Timestamp int64    `json:"timestamp"`
	Bubbles   []Bubble `json:"bubbles"`
	Event     string   `json:"event"`
}

// NewOutgoing builds the envelope for a single text message. The text is
// copied verbatim (no trimming, no length limit); the timestamp is the wall
// clock at call time in epoch milliseconds. An empty ip falls back to the
// loopback address.
func NewOutgoing(userID, text, ip string) OutgoingMessage {
	if ip == "" {
		ip = DefaultUserIP
	}
	return OutgoingMessage{
		Version:   ProtocolVersion,
		UserID:    userID,
		UserIP:    ip,
		Timestamp: time.Now().UnixMilli(),
		Bubbles:   []Bubble{TextBubble(text)},
		Event:     EventSend,
	}
}

// IncomingReply is the loosely typed chatbot reply. Both fields are optional;
// the backend may omit either.
type IncomingReply struct {
	UserID  string   `json:"userId"`
	Bubbles []Bubble `json:"bubbles"`
}

// ClientReply is the only shape returned to the browser.
type ClientReply struct {
	UserID    string `json:"userId"`
	ReplyText string `json:"replyText"`
}

// ParseReply normalizes a raw chatbot response body into a ClientReply.
//
// A body that is not a valid reply envelope yields a MalformedResponseError.
// A well-formed reply without a text bubble is not an error: ReplyText is
// empty. The backend's echoed userId wins over fallbackUserID when present.
func ParseReply(raw []byte, fallbackUserID string) (ClientReply, error) {
	var in IncomingReply
	if err := json.Unmarshal(raw, &in); err != nil {
		return ClientReply{}, &MalformedResponseError{Err: err}
	}

	out := ClientReply{UserID: fallbackUserID}
	if in.UserID != "" {
		out.UserID = in.UserID
	}
	for _, b := range in.Bubbles {
		if b.Kind() == BubbleText {
			out.ReplyText = b.Data.Description
			break
		}
	}
	return out, nil
}
