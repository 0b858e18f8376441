package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutgoing_Fields(t *testing.T) {
	before := time.Now().UnixMilli()
	msg := NewOutgoing("u1", "balance?", "203.0.113.7")
	after := time.Now().UnixMilli()

	assert.Equal(t, ProtocolVersion, msg.Version)
	assert.Equal(t, EventSend, msg.Event)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "203.0.113.7", msg.UserIP)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
	assert.LessOrEqual(t, msg.Timestamp, after)

	require.Len(t, msg.Bubbles, 1)
	assert.Equal(t, BubbleText, msg.Bubbles[0].Kind())
	assert.Equal(t, "balance?", msg.Bubbles[0].Data.Description)
}

func TestNewOutgoing_EmptyIPDefaultsToLoopback(t *testing.T) {
	msg := NewOutgoing("u1", "hi", "")
	assert.Equal(t, DefaultUserIP, msg.UserIP)
}

func TestNewOutgoing_TextCopiedVerbatim(t *testing.T) {
	// No trimming, no suppression of empty sends at this layer.
	msg := NewOutgoing("u1", "  spaced \n", "")
	assert.Equal(t, "  spaced \n", msg.Bubbles[0].Data.Description)

	msg = NewOutgoing("u1", "", "")
	assert.Equal(t, "", msg.Bubbles[0].Data.Description)
}

func TestOutgoingMessage_WireFormat(t *testing.T) {
	msg := NewOutgoing("u1", "hello", "")
	msg.Timestamp = 1700000000000

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	want := `{"version":"v2","userId":"u1","userIp":"127.0.0.1","timestamp":1700000000000,` +
		`"bubbles":[{"type":"text","data":{"description":"hello"}}],"event":"send"}`
	assert.JSONEq(t, want, string(raw))
}

func TestBubble_Kind(t *testing.T) {
	assert.Equal(t, BubbleText, Bubble{Type: "text"}.Kind())
	assert.Equal(t, BubbleOther, Bubble{Type: "image"}.Kind())
	assert.Equal(t, BubbleOther, Bubble{}.Kind())
}

func TestParseReply_FirstTextBubble(t *testing.T) {
	raw := []byte(`{"userId":"u1","bubbles":[{"type":"text","data":{"description":"hello"}}]}`)
	reply, err := ParseReply(raw, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "u1", reply.UserID)
	assert.Equal(t, "hello", reply.ReplyText)
}

func TestParseReply_SkipsUnknownKinds(t *testing.T) {
	raw := []byte(`{"bubbles":[` +
		`{"type":"image","data":{}},` +
		`{"type":"text","data":{"description":"second"}},` +
		`{"type":"text","data":{"description":"third"}}]}`)
	reply, err := ParseReply(raw, "u1")
	require.NoError(t, err)
	assert.Equal(t, "second", reply.ReplyText)
}

func TestParseReply_NoTextBubbleIsNotAnError(t *testing.T) {
	for _, raw := range []string{
		`{"bubbles":[]}`,
		`{}`,
		`{"bubbles":[{"type":"carousel"}]}`,
	} {
		reply, err := ParseReply([]byte(raw), "u1")
		require.NoError(t, err, raw)
		assert.Equal(t, "", reply.ReplyText, raw)
		assert.Equal(t, "u1", reply.UserID, raw)
	}
}

func TestParseReply_FallbackUserID(t *testing.T) {
	reply, err := ParseReply([]byte(`{"bubbles":[{"type":"text","data":{"description":"x"}}]}`), "caller")
	require.NoError(t, err)
	assert.Equal(t, "caller", reply.UserID)
}

func TestParseReply_MalformedBody(t *testing.T) {
	for _, raw := range []string{
		"not json",
		`"just a string"`,
		`{"bubbles": 42}`,
	} {
		_, err := ParseReply([]byte(raw), "u1")
		require.Error(t, err, raw)
		var malformed *MalformedResponseError
		assert.True(t, errors.As(err, &malformed), raw)
	}
}
