package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"openplay-server/internal/rotation"
)

var (
	ErrUnknownCommand = errors.New("UNKNOWN_COMMAND: Unknown command")
	ErrInvalidPayload = errors.New("INVALID_PAYLOAD: Invalid payload")
)

type commandFunc func(e *rotation.Engine, args json.RawMessage) (any, error)

// commands maps operator command names to engine operations.
var commands = map[string]commandFunc{
	"add_player": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a AddPlayerArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return e.AddPlayer(a.Name, a.SkillLevel, a.MoveToFront)
	},
	"add_players": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a AddPlayersArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		added, duplicates, err := e.AddPlayers(a.Names, a.SkillLevel, a.MoveToFront)
		if err != nil {
			return nil, err
		}
		if duplicates == nil {
			duplicates = []string{}
		}
		return AddPlayersResult{Added: added, Duplicates: duplicates}, nil
	},
	"remove_player": playerCommand((*rotation.Engine).RemovePlayer),
	"toggle_player_active": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a PlayerArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		active, err := e.TogglePlayerActive(a.PlayerID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"isActive": active}, nil
	},
	"enqueue": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a EnqueueArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.Enqueue(a.PlayerID, a.AtFront)
	},
	"dequeue":       playerCommand((*rotation.Engine).Dequeue),
	"move_up":       playerCommand((*rotation.Engine).MoveUp),
	"move_down":     playerCommand((*rotation.Engine).MoveDown),
	"move_to_front": playerCommand((*rotation.Engine).MoveToFront),
	"add_court": func(e *rotation.Engine, _ json.RawMessage) (any, error) {
		return e.AddCourt()
	},
	"remove_court": courtCommand((*rotation.Engine).RemoveCourt),
	"rename_court": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a RenameCourtArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.RenameCourt(a.CourtID, a.Name)
	},
	"set_court_status": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a SetCourtStatusArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.SetCourtStatus(a.CourtID, a.Status)
	},
	"start_game": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a StartGameArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return e.StartGame(a.CourtID, a.Team1, a.Team2)
	},
	"end_game": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a EndGameArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return e.EndGame(a.CourtID, a.Winner, a.Score)
	},
	"cancel_game": courtCommand((*rotation.Engine).CancelGame),
	"auto_assign_next_game": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a CourtArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		g, err := e.AutoAssignNextGame(a.CourtID)
		if err != nil || g == nil {
			return nil, err
		}
		return g, nil
	},
	"swap_players": func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a SwapPlayersArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, e.SwapPlayers(a.CourtID, a.FromTeam, a.FromSlot, a.ToTeam, a.ToSlot)
	},
	"remove_player_from_game": seatCommand((*rotation.Engine).RemovePlayerFromGame),
	"pull_player_to_game":     seatCommand((*rotation.Engine).PullPlayerToGame),
}

func playerCommand(fn func(e *rotation.Engine, playerID string) error) commandFunc {
	return func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a PlayerArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, fn(e, a.PlayerID)
	}
}

func courtCommand(fn func(e *rotation.Engine, courtID string) error) commandFunc {
	return func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a CourtArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, fn(e, a.CourtID)
	}
}

func seatCommand(fn func(e *rotation.Engine, courtID string, team rotation.Team, slot int) error) commandFunc {
	return func(e *rotation.Engine, raw json.RawMessage) (any, error) {
		var a SeatArgs
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		return nil, fn(e, a.CourtID, a.Team, a.Slot)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func lookupCommand(name string) (commandFunc, error) {
	fn, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownCommand, name)
	}
	return fn, nil
}
