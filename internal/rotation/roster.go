package rotation

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var nameSeparators = regexp.MustCompile(`[\n,;]+`)

func normalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// IsNameDuplicate compares against every known player, active or not, ignoring
// case and surrounding whitespace.
func (e *Engine) IsNameDuplicate(name string) bool {
	if e.session == nil {
		return false
	}
	want := normalizeName(name)
	for _, p := range e.session.Players {
		if normalizeName(p.Name) == want {
			return true
		}
	}
	return false
}

// ParseNames splits a pasted roster on newlines, commas and semicolons.
func ParseNames(input string) []string {
	var names []string
	for _, part := range nameSeparators.Split(input, -1) {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AddPlayer checks a player in and queues them at the tail, or at the head
// when moveToFront is set.
func (e *Engine) AddPlayer(name string, skillLevel *int, moveToFront bool) (Player, error) {
	if _, err := e.active(); err != nil {
		return Player{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, ErrEmptyName
	}
	if e.IsNameDuplicate(name) {
		return Player{}, ErrDuplicateName
	}
	pos := 0
	if !moveToFront {
		pos = len(e.session.Queue)
	}
	return e.addPlayerAt(name, skillLevel, pos, moveToFront), nil
}

// AddPlayers adds a batch of names. Names that duplicate a known player or an
// earlier name in the batch are skipped and returned. With moveToFront the
// batch keeps its submitted order at the head of the queue.
func (e *Engine) AddPlayers(input string, skillLevel *int, moveToFront bool) ([]Player, []string, error) {
	if _, err := e.active(); err != nil {
		return nil, nil, err
	}

	var fresh, duplicates []string
	seen := make(map[string]bool)
	for _, name := range ParseNames(input) {
		key := normalizeName(name)
		switch {
		case e.IsNameDuplicate(name):
			duplicates = append(duplicates, name)
		case seen[key]:
			continue
		default:
			seen[key] = true
			fresh = append(fresh, name)
		}
	}

	added := make([]Player, 0, len(fresh))
	for i, name := range fresh {
		pos := i
		if !moveToFront {
			pos = len(e.session.Queue)
		}
		added = append(added, e.addPlayerAt(name, skillLevel, pos, moveToFront))
	}
	return added, duplicates, nil
}

func (e *Engine) addPlayerAt(name string, skillLevel *int, pos int, moveToFront bool) Player {
	p := &Player{
		ID:          e.newID(),
		Name:        name,
		CheckedInAt: e.now(),
		IsActive:    true,
	}
	if skillLevel != nil {
		lvl := *skillLevel
		p.SkillLevel = &lvl
	}
	e.session.Players = append(e.session.Players, p)
	e.session.Queue.InsertAt(p.ID, pos)

	msg := fmt.Sprintf("%s joined the session", name)
	if moveToFront {
		msg = fmt.Sprintf("%s added and moved to front of queue", name)
	}
	e.record(ActivityPlayerAdded, msg, &ActivityDetails{PlayerIDs: []string{p.ID}, PlayerNames: []string{name}})
	return *p
}

// RemovePlayer deletes the player record and purges them from the queue.
// Seated players must be taken out of their game first.
func (e *Engine) RemovePlayer(playerID string) error {
	s, p, err := e.player(playerID)
	if err != nil {
		return err
	}
	if s.seatedOn(playerID) != nil {
		return ErrPlayerInGame
	}

	for i, candidate := range s.Players {
		if candidate.ID == playerID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			break
		}
	}
	s.Queue.Dequeue(playerID)
	e.record(ActivityPlayerRemoved, fmt.Sprintf("%s removed from the session", p.Name),
		&ActivityDetails{PlayerIDs: []string{playerID}, PlayerNames: []string{p.Name}})
	return nil
}

// TogglePlayerActive flips the soft-delete flag. Inactive players keep their
// queue position but are skipped by the rotation policy.
func (e *Engine) TogglePlayerActive(playerID string) (bool, error) {
	_, p, err := e.player(playerID)
	if err != nil {
		return false, err
	}
	p.IsActive = !p.IsActive
	return p.IsActive, nil
}

func (e *Engine) Enqueue(playerID string, atFront bool) error {
	s, p, err := e.player(playerID)
	if err != nil {
		return err
	}
	if s.seatedOn(playerID) != nil {
		return ErrPlayerInGame
	}
	if !s.Queue.Enqueue(playerID, atFront) {
		return nil
	}
	msg := fmt.Sprintf("%s joined the queue", p.Name)
	if atFront {
		msg = fmt.Sprintf("%s joined the front of the queue", p.Name)
	}
	e.record(ActivityPlayerQueued, msg, &ActivityDetails{PlayerIDs: []string{playerID}, PlayerNames: []string{p.Name}})
	return nil
}

func (e *Engine) Dequeue(playerID string) error {
	s, err := e.active()
	if err != nil {
		return err
	}
	if !s.Queue.Dequeue(playerID) {
		return nil
	}
	name := s.playerName(playerID)
	e.record(ActivityPlayerRemoved, fmt.Sprintf("%s left the queue", name),
		&ActivityDetails{PlayerIDs: []string{playerID}, PlayerNames: []string{name}})
	return nil
}

func (e *Engine) MoveUp(playerID string) error {
	return e.moveInQueue(playerID, ActivityPlayerMovedUp)
}

func (e *Engine) MoveDown(playerID string) error {
	return e.moveInQueue(playerID, ActivityPlayerMovedDown)
}

func (e *Engine) moveInQueue(playerID string, kind ActivityType) error {
	s, err := e.active()
	if err != nil {
		return err
	}
	if !s.Queue.Contains(playerID) {
		return ErrNotQueued
	}

	var (
		pos   int
		moved bool
		dir   = "up"
	)
	if kind == ActivityPlayerMovedUp {
		pos, moved = s.Queue.MoveUp(playerID)
	} else {
		dir = "down"
		pos, moved = s.Queue.MoveDown(playerID)
	}
	if !moved {
		return ErrQueueBoundary
	}

	name := s.playerName(playerID)
	e.record(kind, fmt.Sprintf("%s moved %s to position %d", name, dir, pos+1),
		&ActivityDetails{PlayerIDs: []string{playerID}, PlayerNames: []string{name}})
	return nil
}

func (e *Engine) MoveToFront(playerID string) error {
	s, err := e.active()
	if err != nil {
		return err
	}
	if !s.Queue.Contains(playerID) {
		return ErrNotQueued
	}
	if !s.Queue.MoveToFront(playerID) {
		return ErrQueueBoundary
	}
	name := s.playerName(playerID)
	e.record(ActivityPlayerMovedFront, fmt.Sprintf("%s skipped to front of queue", name),
		&ActivityDetails{PlayerIDs: []string{playerID}, PlayerNames: []string{name}})
	return nil
}

// PlayersInQueue resolves the queue to player records in wait order.
func (e *Engine) PlayersInQueue() []Player {
	if e.session == nil {
		return nil
	}
	out := make([]Player, 0, len(e.session.Queue))
	for _, id := range e.session.Queue {
		if p := e.session.PlayerByID(id); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// AvailablePlayers lists active players not seated on any court.
func (e *Engine) AvailablePlayers() []Player {
	if e.session == nil {
		return nil
	}
	var out []Player
	for _, p := range e.session.Players {
		if p.IsActive && e.session.seatedOn(p.ID) == nil {
			out = append(out, *p)
		}
	}
	return out
}

func (e *Engine) PlayerByID(playerID string) (Player, bool) {
	if e.session == nil {
		return Player{}, false
	}
	if p := e.session.PlayerByID(playerID); p != nil {
		return *p, true
	}
	return Player{}, false
}
