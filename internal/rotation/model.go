package rotation

import (
	"encoding/json"
	"fmt"
	"time"
)

type CourtStatus string

const (
	CourtAvailable   CourtStatus = "available"
	CourtInGame      CourtStatus = "in_game"
	CourtMaintenance CourtStatus = "maintenance"
)

func (s CourtStatus) Valid() bool {
	switch s {
	case CourtAvailable, CourtInGame, CourtMaintenance:
		return true
	}
	return false
}

func (s *CourtStatus) UnmarshalText(b []byte) error {
	v := CourtStatus(b)
	if !v.Valid() {
		return fmt.Errorf("INVALID_STATUS: unknown court status %q", string(b))
	}
	*s = v
	return nil
}

type RotationMode string

const (
	WinnersStay  RotationMode = "winners_stay"
	FullRotation RotationMode = "full_rotation"
	KingOfCourt  RotationMode = "king_of_court"
	SkillBased   RotationMode = "skill_based"
)

func (m RotationMode) Valid() bool {
	switch m {
	case WinnersStay, FullRotation, KingOfCourt, SkillBased:
		return true
	}
	return false
}

// WinnersStay reports whether the winning pair is kept on court for the next game.
func (m RotationMode) WinnersStay() bool {
	switch m {
	case WinnersStay, KingOfCourt:
		return true
	case FullRotation, SkillBased:
		return false
	}
	return false
}

func (m *RotationMode) UnmarshalText(b []byte) error {
	v := RotationMode(b)
	if !v.Valid() {
		return fmt.Errorf("INVALID_MODE: unknown rotation mode %q", string(b))
	}
	*m = v
	return nil
}

type ActivityType string

const (
	ActivityGameStarted      ActivityType = "game_started"
	ActivityGameEnded        ActivityType = "game_ended"
	ActivityPlayerAdded      ActivityType = "player_added"
	ActivityPlayerQueued     ActivityType = "player_queued"
	ActivityPlayerMovedFront ActivityType = "player_moved_front"
	ActivityPlayerMovedUp    ActivityType = "player_moved_up"
	ActivityPlayerMovedDown  ActivityType = "player_moved_down"
	ActivityPlayerRemoved    ActivityType = "player_removed"
)

func (a ActivityType) Valid() bool {
	switch a {
	case ActivityGameStarted, ActivityGameEnded, ActivityPlayerAdded, ActivityPlayerQueued,
		ActivityPlayerMovedFront, ActivityPlayerMovedUp, ActivityPlayerMovedDown, ActivityPlayerRemoved:
		return true
	}
	return false
}

func (a *ActivityType) UnmarshalText(b []byte) error {
	v := ActivityType(b)
	if !v.Valid() {
		return fmt.Errorf("INVALID_ACTIVITY: unknown activity type %q", string(b))
	}
	*a = v
	return nil
}

type Team string

const (
	Team1 Team = "team1"
	Team2 Team = "team2"
)

func (t Team) Valid() bool {
	return t == Team1 || t == Team2
}

func (t Team) Other() Team {
	if t == Team1 {
		return Team2
	}
	return Team1
}

func (t *Team) UnmarshalText(b []byte) error {
	v := Team(b)
	if !v.Valid() {
		return fmt.Errorf("INVALID_TEAM: unknown team %q", string(b))
	}
	*t = v
	return nil
}

// Slot is one seat of a doubles team. A slot is vacant only while its game is
// being edited on a court; vacancy is explicit rather than an empty id.
type Slot struct {
	playerID string
	occupied bool
}

func Seat(playerID string) Slot {
	return Slot{playerID: playerID, occupied: true}
}

func Vacant() Slot {
	return Slot{}
}

func (s Slot) PlayerID() (string, bool) {
	return s.playerID, s.occupied
}

func (s Slot) Occupied() bool {
	return s.occupied
}

// Slots serialise as the player id, or null when vacant.
func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.occupied {
		return []byte("null"), nil
	}
	return json.Marshal(s.playerID)
}

func (s *Slot) UnmarshalJSON(b []byte) error {
	var id *string
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	if id == nil {
		*s = Vacant()
		return nil
	}
	*s = Seat(*id)
	return nil
}

// Pair is the two seats of one side of a doubles game.
type Pair [2]Slot

func NewPair(a, b string) Pair {
	return Pair{Seat(a), Seat(b)}
}

// PlayerIDs returns the occupied seats in slot order.
func (p Pair) PlayerIDs() []string {
	ids := make([]string, 0, 2)
	for _, s := range p {
		if id, ok := s.PlayerID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p Pair) Full() bool {
	return p[0].Occupied() && p[1].Occupied()
}

func (p Pair) Contains(playerID string) bool {
	for _, s := range p {
		if id, ok := s.PlayerID(); ok && id == playerID {
			return true
		}
	}
	return false
}

type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SkillLevel  *int      `json:"skillLevel,omitempty"` // 1-5, informational only
	GamesPlayed int       `json:"gamesPlayed"`
	GamesWon    int       `json:"gamesWon"`
	CheckedInAt time.Time `json:"checkedInAt"`
	IsActive    bool      `json:"isActive"`
}

func (p Player) WaitDuration(now time.Time) time.Duration {
	if now.Before(p.CheckedInAt) {
		return 0
	}
	return now.Sub(p.CheckedInAt)
}

type Score struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

type Game struct {
	ID        string     `json:"id"`
	CourtID   string     `json:"courtId"`
	Team1     Pair       `json:"team1"`
	Team2     Pair       `json:"team2"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Winner    *Team      `json:"winner,omitempty"`
	Score     *Score     `json:"score,omitempty"`
}

func (g *Game) Side(t Team) *Pair {
	if t == Team1 {
		return &g.Team1
	}
	return &g.Team2
}

// PlayerIDs lists occupied seats, team1 first.
func (g *Game) PlayerIDs() []string {
	return append(g.Team1.PlayerIDs(), g.Team2.PlayerIDs()...)
}

func (g *Game) Contains(playerID string) bool {
	return g.Team1.Contains(playerID) || g.Team2.Contains(playerID)
}

type Court struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      CourtStatus `json:"status"`
	CurrentGame *Game       `json:"currentGame,omitempty"`
}

type ActivityDetails struct {
	PlayerIDs   []string `json:"playerIds,omitempty"`
	PlayerNames []string `json:"playerNames,omitempty"`
	CourtID     string   `json:"courtId,omitempty"`
	CourtName   string   `json:"courtName,omitempty"`
	Winner      *Team    `json:"winner,omitempty"`
	Team1Names  []string `json:"team1Names,omitempty"`
	Team2Names  []string `json:"team2Names,omitempty"`
}

type ActivityLogEntry struct {
	ID        string           `json:"id"`
	Type      ActivityType     `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Message   string           `json:"message"`
	Details   *ActivityDetails `json:"details,omitempty"`
}

type SessionConfig struct {
	Name         string       `json:"name"`
	Location     string       `json:"location,omitempty"`
	Date         string       `json:"date,omitempty"`
	Time         string       `json:"time,omitempty"`
	CourtCount   int          `json:"courtCount"`
	RotationMode RotationMode `json:"rotationMode"`
	// AutoAssignOnEnd re-seats a freed court as part of EndGame in winners-stay modes.
	AutoAssignOnEnd bool `json:"autoAssignOnEnd,omitempty"`
}

// Session is the aggregate root. It is also the snapshot document handed to
// storage and to remote viewers.
type Session struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Location        string       `json:"location,omitempty"`
	Date            string       `json:"date,omitempty"`
	Time            string       `json:"time,omitempty"`
	Courts          []*Court     `json:"courts"`
	Players         []*Player    `json:"players"`
	Queue           Queue        `json:"queue"`
	RotationMode    RotationMode `json:"rotationMode"`
	AutoAssignOnEnd bool         `json:"autoAssignOnEnd,omitempty"`
	GamesCompleted  []*Game      `json:"gamesCompleted"`
	ActivityLog     ActivityLog  `json:"activityLog"`
	CreatedAt       time.Time    `json:"createdAt"`
	IsActive        bool         `json:"isActive"`
	ShareCode       string       `json:"shareCode,omitempty"`
}

func (s *Session) Court(id string) *Court {
	for _, c := range s.Courts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Session) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) playerName(id string) string {
	if p := s.PlayerByID(id); p != nil {
		return p.Name
	}
	return "Player"
}

func (s *Session) playerNames(ids []string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.playerName(id)
	}
	return names
}

// seatedOn returns the court whose current game seats the player, if any.
func (s *Session) seatedOn(playerID string) *Court {
	for _, c := range s.Courts {
		if c.CurrentGame != nil && c.CurrentGame.Contains(playerID) {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy, used to hand out snapshots that later commands
// cannot mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Courts = make([]*Court, len(s.Courts))
	for i, c := range s.Courts {
		cc := *c
		cc.CurrentGame = c.CurrentGame.clone()
		out.Courts[i] = &cc
	}
	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		pc := *p
		if p.SkillLevel != nil {
			lvl := *p.SkillLevel
			pc.SkillLevel = &lvl
		}
		out.Players[i] = &pc
	}
	out.Queue = s.Queue.clone()
	out.GamesCompleted = make([]*Game, len(s.GamesCompleted))
	for i, g := range s.GamesCompleted {
		out.GamesCompleted[i] = g.clone()
	}
	out.ActivityLog = s.ActivityLog.clone()
	return &out
}

func (g *Game) clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	if g.EndedAt != nil {
		t := *g.EndedAt
		out.EndedAt = &t
	}
	if g.Winner != nil {
		w := *g.Winner
		out.Winner = &w
	}
	if g.Score != nil {
		sc := *g.Score
		out.Score = &sc
	}
	return &out
}
