package protocol

import "fmt"

// ActionKind enumerates client-to-server intents.
type ActionKind string

const (
	ActionSetUsername    ActionKind = "set_username"
	ActionCreateRoom     ActionKind = "create_room"
	ActionJoin           ActionKind = "join"
	ActionListRooms      ActionKind = "list_rooms"
	ActionLeave          ActionKind = "leave"
	ActionMessage        ActionKind = "message"
	ActionPrivateMessage ActionKind = "private_message"
)

// Action is a single client request. Fields beyond Kind are populated
// per kind and left empty otherwise.
type Action struct {
	Kind     ActionKind `json:"action"`
	Username string     `json:"username,omitempty"`
	Room     string     `json:"room,omitempty"`
	To       string     `json:"to,omitempty"`
	Text     string     `json:"text,omitempty"`
}

// EnvelopeKind enumerates server-to-client payloads.
type EnvelopeKind string

const (
	EnvelopeWelcome     EnvelopeKind = "welcome"
	EnvelopeNameSet     EnvelopeKind = "name_set"
	EnvelopeRoomJoined  EnvelopeKind = "room_joined"
	EnvelopeRoomLeft    EnvelopeKind = "room_left"
	EnvelopeRoomList    EnvelopeKind = "room_list"
	EnvelopeBroadcast   EnvelopeKind = "broadcast"
	EnvelopePrivate     EnvelopeKind = "private"
	EnvelopePrivateSent EnvelopeKind = "private_sent"
	EnvelopeSystem      EnvelopeKind = "system"
	EnvelopeError       EnvelopeKind = "error"
)

// SystemEvent names room membership notices carried by system envelopes.
type SystemEvent string

const (
	SystemUserJoined SystemEvent = "user_joined"
	SystemUserLeft   SystemEvent = "user_left"
)

// RoomInfo is one entry of a room_list envelope.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Envelope is a single server frame. It is immutable once constructed;
// only the fields relevant to Kind are set.
type Envelope struct {
	Kind     EnvelopeKind `json:"action"`
	Username string       `json:"username,omitempty"`
	Room     string       `json:"room,omitempty"`
	Rooms    []RoomInfo   `json:"rooms,omitempty"`
	From     string       `json:"from,omitempty"`
	To       string       `json:"to,omitempty"`
	Text     string       `json:"text,omitempty"`
	Event    SystemEvent  `json:"event,omitempty"`
	Code     string       `json:"code,omitempty"`
	Ts       int64        `json:"ts,omitempty"`
}

// NewWelcome greets a fresh connection with the username rules.
func NewWelcome(minLen, maxLen int) Envelope {
	return Envelope{
		Kind: EnvelopeWelcome,
		Text: fmt.Sprintf("Welcome to chat! Please choose a unique username (%d-%d characters).", minLen, maxLen),
	}
}

// NewNameSet confirms a claimed username.
func NewNameSet(username string) Envelope {
	return Envelope{
		Kind:     EnvelopeNameSet,
		Username: username,
		Text:     fmt.Sprintf("Welcome, %s!", username),
	}
}

// NewRoomJoined confirms room membership to the joining session.
func NewRoomJoined(room string) Envelope {
	return Envelope{Kind: EnvelopeRoomJoined, Room: room}
}

// NewRoomLeft confirms a departure to the leaving session.
func NewRoomLeft(room string) Envelope {
	return Envelope{Kind: EnvelopeRoomLeft, Room: room}
}

// NewRoomList carries a snapshot of rooms and their member counts.
func NewRoomList(rooms []RoomInfo) Envelope {
	return Envelope{Kind: EnvelopeRoomList, Rooms: rooms}
}

// NewBroadcast carries a room message to every member.
func NewBroadcast(room, from, text string, ts int64) Envelope {
	return Envelope{Kind: EnvelopeBroadcast, Room: room, From: from, Text: text, Ts: ts}
}

// NewPrivate carries a direct message to its recipient.
func NewPrivate(from, to, text string, ts int64) Envelope {
	return Envelope{Kind: EnvelopePrivate, From: from, To: to, Text: text, Ts: ts}
}

// NewPrivateSent confirms direct-message delivery to the sender.
func NewPrivateSent(to, text string, ts int64) Envelope {
	return Envelope{Kind: EnvelopePrivateSent, To: to, Text: text, Ts: ts}
}

// NewSystem carries a membership notice to a room.
func NewSystem(event SystemEvent, room, username string, ts int64) Envelope {
	return Envelope{Kind: EnvelopeSystem, Event: event, Room: room, Username: username, Ts: ts}
}

// NewError reports a rejected request back to its originator.
func NewError(code, text string) Envelope {
	return Envelope{Kind: EnvelopeError, Code: code, Text: text}
}
