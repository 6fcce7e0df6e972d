package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	req := require.New(t)

	act, err := DecodeAction([]byte(`{"action":"private_message","to":"bob","text":"psst"}`))
	req.NoError(err)
	req.Equal(ActionPrivateMessage, act.Kind)
	req.Equal("bob", act.To)
	req.Equal("psst", act.Text)
	req.Empty(act.Room)
	req.Empty(act.Username)
}

func TestDecodeActionMalformed(t *testing.T) {
	for _, frame := range []string{`{"action":`, `"join"`, `[]`, ``} {
		_, err := DecodeAction([]byte(frame))
		require.Error(t, err, "frame %q", frame)
	}
}

func TestDecodeActionUnknownKindPassesThrough(t *testing.T) {
	act, err := DecodeAction([]byte(`{"action":"dance"}`))
	require.NoError(t, err)
	require.Equal(t, ActionKind("dance"), act.Kind)
}

func TestEnvelopeWireFormat(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEnvelope(NewBroadcast("lobby", "alice", "hi there", 42))
	req.NoError(err)

	var frame map[string]any
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal("broadcast", frame["action"])
	req.Equal("lobby", frame["room"])
	req.Equal("alice", frame["from"])
	req.Equal("hi there", frame["text"])
	req.EqualValues(42, frame["ts"])

	// Unset fields stay off the wire entirely.
	req.NotContains(frame, "rooms")
	req.NotContains(frame, "code")
	req.NotContains(frame, "username")
	req.NotContains(frame, "to")
}

func TestErrorEnvelopeWireFormat(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEnvelope(NewError("queue_full", "too slow"))
	req.NoError(err)

	var frame map[string]any
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal("error", frame["action"])
	req.Equal("queue_full", frame["code"])
	req.Equal("too slow", frame["text"])
	req.NotContains(frame, "ts")
}

func TestSystemEnvelopeRoundTrip(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEnvelope(NewSystem(SystemUserJoined, "lobby", "bob", 99))
	req.NoError(err)

	env, err := DecodeEnvelope(data)
	req.NoError(err)
	req.Equal(EnvelopeSystem, env.Kind)
	req.Equal(SystemUserJoined, env.Event)
	req.Equal("lobby", env.Room)
	req.Equal("bob", env.Username)
	req.EqualValues(99, env.Ts)
}

func TestRoomListEnvelope(t *testing.T) {
	req := require.New(t)

	rooms := []RoomInfo{{Name: "den", Members: 2}, {Name: "lobby", Members: 1}}
	data, err := EncodeEnvelope(NewRoomList(rooms))
	req.NoError(err)

	env, err := DecodeEnvelope(data)
	req.NoError(err)
	req.Equal(EnvelopeRoomList, env.Kind)
	req.Equal(rooms, env.Rooms)
}

func TestWelcomeMentionsNameRules(t *testing.T) {
	env := NewWelcome(3, 20)
	require.Equal(t, EnvelopeWelcome, env.Kind)
	require.Contains(t, env.Text, "(3-20 characters)")
}
