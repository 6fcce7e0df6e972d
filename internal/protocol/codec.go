package protocol

import "encoding/json"

// DecodeAction parses one inbound JSON frame. A frame that is not a JSON
// object fails here; an object with a missing or unknown action kind is
// left for the router to reject.
func DecodeAction(data []byte) (Action, error) {
	var act Action
	if err := json.Unmarshal(data, &act); err != nil {
		return Action{}, err
	}
	return act, nil
}

// EncodeAction serializes an action for the wire.
func EncodeAction(act Action) ([]byte, error) {
	return json.Marshal(act)
}

// DecodeEnvelope parses one server frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// EncodeEnvelope serializes an envelope for the wire.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
