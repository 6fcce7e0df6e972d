package chat

import "errors"

// Wire error codes carried in the Code field of error envelopes.
const (
	CodeNameTaken         = "name_taken"
	CodeInvalidName       = "invalid_name"
	CodeNotNamed          = "not_named"
	CodeNotInRoom         = "not_in_room"
	CodeUnknownAction     = "unknown_action"
	CodeRecipientNotFound = "recipient_not_found"
	CodeQueueFull         = "queue_full"
	CodeInvalidJSON       = "invalid_json"
	CodeInternal          = "internal_error"
)

var (
	// ErrNameTaken rejects a username another live session holds.
	ErrNameTaken = errors.New("username is taken")
	// ErrInvalidName rejects a username or room name that fails validation.
	ErrInvalidName = errors.New("invalid name")
	// ErrNotNamed rejects room and message actions before set_username.
	ErrNotNamed = errors.New("set a username first")
	// ErrNotInRoom rejects room messages and leaves without membership.
	ErrNotInRoom = errors.New("not in a room")
	// ErrUnknownAction rejects an unrecognized action kind.
	ErrUnknownAction = errors.New("unknown action")
	// ErrRecipientNotFound rejects a private message to an unknown name.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrQueueFull signals a bounded queue that rejected an enqueue.
	ErrQueueFull = errors.New("queue full")
	// ErrSessionClosed signals an enqueue on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// ErrorCode maps a handler error onto its wire code. Anything outside
// the taxonomy reports as an internal error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNameTaken):
		return CodeNameTaken
	case errors.Is(err, ErrInvalidName):
		return CodeInvalidName
	case errors.Is(err, ErrNotNamed):
		return CodeNotNamed
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	case errors.Is(err, ErrRecipientNotFound):
		return CodeRecipientNotFound
	case errors.Is(err, ErrQueueFull):
		return CodeQueueFull
	default:
		return CodeInternal
	}
}
