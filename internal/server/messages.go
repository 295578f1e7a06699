package server

import "encoding/json"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client message types.
const (
	MsgPing          = "ping"
	MsgCreateSession = "create_session"
	MsgResume        = "resume"
	MsgWatch         = "watch"
	MsgCommand       = "command"
	MsgEndSession    = "end_session"
)

// Server message types.
const (
	MsgPong           = "pong"
	MsgError          = "error"
	MsgSessionCreated = "session_created"
	MsgResumed        = "resumed"
	MsgWatching       = "watching"
	MsgCommandResult  = "command_result"
	MsgSessionState   = "session_state"
	MsgSessionEnded   = "session_ended"
	MsgTakenOver      = "taken_over"
)
