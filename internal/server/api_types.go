package server

import (
	"encoding/json"

	"openplay-server/internal/rotation"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// CREATE SESSION (create_session)
// ============================================================================
// tygo:generate
type CreateSessionRequest struct {
	Name            string                `json:"name"`
	Location        string                `json:"location,omitempty"`
	Date            string                `json:"date,omitempty"`
	Time            string                `json:"time,omitempty"`
	CourtCount      int                   `json:"courtCount"`
	RotationMode    rotation.RotationMode `json:"rotationMode"`
	AutoAssignOnEnd bool                  `json:"autoAssignOnEnd,omitempty"`
}

// tygo:generate
type SessionCreatedResponse struct {
	ShareCode string            `json:"shareCode"`
	Token     string            `json:"token"`
	Session   *rotation.Session `json:"session"`
}

// ============================================================================
// RESUME (resume) - operator reconnect
// ============================================================================
// tygo:generate
type ResumeRequest struct {
	Token string `json:"token"`
}

// tygo:generate
type ResumedResponse struct {
	ShareCode string            `json:"shareCode"`
	Session   *rotation.Session `json:"session"`
}

// ============================================================================
// WATCH (watch) - read-only viewer
// ============================================================================
// tygo:generate
type WatchRequest struct {
	ShareCode string `json:"shareCode"`
}

// ============================================================================
// COMMAND (command)
// ============================================================================
// tygo:generate
type CommandRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// tygo:generate
type CommandResultResponse struct {
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
}

// ============================================================================
// COMMAND ARGUMENTS
// ============================================================================
// tygo:generate
type AddPlayerArgs struct {
	Name        string `json:"name"`
	SkillLevel  *int   `json:"skillLevel,omitempty"`
	MoveToFront bool   `json:"moveToFront,omitempty"`
}

// Names may hold several names separated by newlines, commas or semicolons.
// tygo:generate
type AddPlayersArgs struct {
	Names       string `json:"names"`
	SkillLevel  *int   `json:"skillLevel,omitempty"`
	MoveToFront bool   `json:"moveToFront,omitempty"`
}

// tygo:generate
type AddPlayersResult struct {
	Added      []rotation.Player `json:"added"`
	Duplicates []string          `json:"duplicates"`
}

// tygo:generate
type PlayerArgs struct {
	PlayerID string `json:"playerId"`
}

// tygo:generate
type EnqueueArgs struct {
	PlayerID string `json:"playerId"`
	AtFront  bool   `json:"atFront,omitempty"`
}

// tygo:generate
type CourtArgs struct {
	CourtID string `json:"courtId"`
}

// tygo:generate
type RenameCourtArgs struct {
	CourtID string `json:"courtId"`
	Name    string `json:"name"`
}

// tygo:generate
type SetCourtStatusArgs struct {
	CourtID string               `json:"courtId"`
	Status  rotation.CourtStatus `json:"status"`
}

// tygo:generate
type StartGameArgs struct {
	CourtID string    `json:"courtId"`
	Team1   [2]string `json:"team1"`
	Team2   [2]string `json:"team2"`
}

// tygo:generate
type EndGameArgs struct {
	CourtID string          `json:"courtId"`
	Winner  rotation.Team   `json:"winner"`
	Score   *rotation.Score `json:"score,omitempty"`
}

// tygo:generate
type SeatArgs struct {
	CourtID string        `json:"courtId"`
	Team    rotation.Team `json:"team"`
	Slot    int           `json:"slot"`
}

// tygo:generate
type SwapPlayersArgs struct {
	CourtID  string        `json:"courtId"`
	FromTeam rotation.Team `json:"fromTeam"`
	FromSlot int           `json:"fromSlot"`
	ToTeam   rotation.Team `json:"toTeam"`
	ToSlot   int           `json:"toSlot"`
}

// ============================================================================
// SESSION STATE (watching reply and session_state broadcast)
// ============================================================================
// tygo:generate
type SessionStateNotification struct {
	ShareCode string            `json:"shareCode"`
	Session   *rotation.Session `json:"session"`
}

// ============================================================================
// SESSION ENDED (session_ended broadcast)
// ============================================================================
// tygo:generate
type SessionEndedNotification struct {
	ShareCode string `json:"shareCode"`
	Message   string `json:"message"`
}

// tygo:generate
type TakenOverNotification struct {
	Message string `json:"message"`
}

// ============================================================================
// HTTP
// ============================================================================
// tygo:generate
type ShareLinkResponse struct {
	ShareCode string `json:"shareCode"`
	URL       string `json:"url"`
	QRCodeURL string `json:"qrCodeUrl"`
}
