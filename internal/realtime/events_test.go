package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelopeDecoding(t *testing.T) {
	raw := []byte(`{"event":"join chat","data":{"chatId":7}}`)

	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.NoError(t, ev.Validate())
	assert.Equal(t, EventJoinChat, ev.Event)

	var data RoomData
	require.NoError(t, ev.Unmarshal(&data))
	assert.Equal(t, uint(7), data.ChatID)
}

func TestEventValidateRejectsMissingType(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"data":{}}`), &ev))
	assert.Error(t, ev.Validate())
}

func TestUnmarshalRequiresPayload(t *testing.T) {
	ev := Event{Event: EventHeartbeat}
	var data RoomData
	assert.Error(t, ev.Unmarshal(&data))
}

func TestIsClientEvent(t *testing.T) {
	for _, et := range []EventType{
		EventSetup, EventHeartbeat, EventJoinChat, EventLeaveChat,
		EventTyping, EventStopTyping, EventNewMessage, EventAppBackground,
		EventCheckUserStatus, EventUpdateChatList, EventGetChatUpdates,
	} {
		assert.True(t, et.IsClientEvent(), et.String())
	}
	for _, et := range []EventType{
		EventConnected, EventOnlineUsers, EventUserOnline, EventUserOffline,
		EventMessageReceived, EventMessagesRead, EventChatListUpdate,
		EventNewChatNotification, EventError,
	} {
		assert.False(t, et.IsClientEvent(), et.String())
	}
}

func TestNewMessageDataDistinguishesReferenceFromInline(t *testing.T) {
	var ref NewMessageData
	require.NoError(t, json.Unmarshal([]byte(`{"messageId":12,"chatId":3}`), &ref))
	assert.Equal(t, uint(12), ref.MessageID)

	var inline NewMessageData
	require.NoError(t, json.Unmarshal([]byte(`{"chatId":3,"text":"hi"}`), &inline))
	assert.Zero(t, inline.MessageID)
	require.NotNil(t, inline.Text)
	assert.Equal(t, "hi", *inline.Text)
}
