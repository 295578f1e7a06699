package rotation

import "errors"

// Every command that returns one of these left the session unchanged.
var (
	ErrNoSession          = errors.New("NO_SESSION: No session is active")
	ErrInvalidConfig      = errors.New("INVALID_CONFIG: Session needs a name, at least one court and a rotation mode")
	ErrCourtNotFound      = errors.New("COURT_NOT_FOUND: Court not found")
	ErrPlayerNotFound     = errors.New("PLAYER_NOT_FOUND: Player not found")
	ErrCourtInGame        = errors.New("COURT_IN_GAME: Court has a game in progress")
	ErrLastCourt          = errors.New("LAST_COURT: Cannot remove the only court")
	ErrCourtNotAvailable  = errors.New("COURT_NOT_AVAILABLE: Court is not available")
	ErrNoGameInProgress   = errors.New("NO_GAME: Court has no game in progress")
	ErrInvalidStatus      = errors.New("INVALID_STATUS: Court status can only be set to available or maintenance")
	ErrPlayerUnavailable  = errors.New("PLAYER_UNAVAILABLE: Player is inactive or already seated in a game")
	ErrDuplicateSelection = errors.New("DUPLICATE_SELECTION: A player cannot take two seats")
	ErrPlayerInGame       = errors.New("PLAYER_IN_GAME: Player is seated in a game in progress")
	ErrEmptyName          = errors.New("EMPTY_NAME: Name cannot be empty")
	ErrDuplicateName      = errors.New("DUPLICATE_NAME: A player with that name already exists")
	ErrNotQueued          = errors.New("NOT_QUEUED: Player is not in the queue")
	ErrQueueBoundary      = errors.New("QUEUE_BOUNDARY: Player cannot move further")
	ErrQueueEmpty         = errors.New("QUEUE_EMPTY: Nobody is waiting")
	ErrInvalidTeam        = errors.New("INVALID_TEAM: Team must be team1 or team2")
	ErrInvalidSlot        = errors.New("INVALID_SLOT: Slot must be 0 or 1")
	ErrSlotVacant         = errors.New("SLOT_VACANT: Slot is already empty")
	ErrSlotOccupied       = errors.New("SLOT_OCCUPIED: Slot already has a player")
	ErrTeamEmpty          = errors.New("TEAM_EMPTY: Winning team has no players")
)
