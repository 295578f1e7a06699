package rotation

import (
	"fmt"
	"strings"
)

func (e *Engine) AddCourt() (Court, error) {
	s, err := e.active()
	if err != nil {
		return Court{}, err
	}
	c := &Court{
		ID:     e.newID(),
		Name:   fmt.Sprintf("Court %d", len(s.Courts)+1),
		Status: CourtAvailable,
	}
	s.Courts = append(s.Courts, c)
	return *c, nil
}

func (e *Engine) RemoveCourt(courtID string) error {
	s, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	if c.Status == CourtInGame {
		return ErrCourtInGame
	}
	if len(s.Courts) == 1 {
		return ErrLastCourt
	}
	for i, candidate := range s.Courts {
		if candidate.ID == courtID {
			s.Courts = append(s.Courts[:i], s.Courts[i+1:]...)
			break
		}
	}
	return nil
}

// RenameCourt trims the new name; an empty result keeps the previous name.
func (e *Engine) RenameCourt(courtID, name string) error {
	_, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.Name = name
	return nil
}

// SetCourtStatus toggles between available and maintenance. in_game is only
// reachable through StartGame.
func (e *Engine) SetCourtStatus(courtID string, status CourtStatus) error {
	_, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	switch status {
	case CourtAvailable, CourtMaintenance:
	default:
		return ErrInvalidStatus
	}
	if c.Status == CourtInGame {
		return ErrCourtInGame
	}
	c.Status = status
	return nil
}

func (e *Engine) SetMaintenance(courtID string) error {
	return e.SetCourtStatus(courtID, CourtMaintenance)
}

func (e *Engine) ClearMaintenance(courtID string) error {
	return e.SetCourtStatus(courtID, CourtAvailable)
}

// StartGame seats two pairs on an available court and takes them out of the queue.
func (e *Engine) StartGame(courtID string, team1, team2 [2]string) (Game, error) {
	s, c, err := e.court(courtID)
	if err != nil {
		return Game{}, err
	}
	if c.Status != CourtAvailable {
		return Game{}, ErrCourtNotAvailable
	}

	seen := make(map[string]bool, 4)
	for _, id := range [4]string{team1[0], team1[1], team2[0], team2[1]} {
		p := s.PlayerByID(id)
		if p == nil {
			return Game{}, ErrPlayerNotFound
		}
		if !p.IsActive {
			return Game{}, ErrPlayerUnavailable
		}
		if seen[id] {
			return Game{}, ErrDuplicateSelection
		}
		seen[id] = true
		if s.seatedOn(id) != nil {
			return Game{}, ErrPlayerUnavailable
		}
	}

	g := e.seat(s, c, NewPair(team1[0], team1[1]), NewPair(team2[0], team2[1]))
	return *g.clone(), nil
}

func (e *Engine) seat(s *Session, c *Court, team1, team2 Pair) *Game {
	g := &Game{
		ID:        e.newID(),
		CourtID:   c.ID,
		Team1:     team1,
		Team2:     team2,
		StartedAt: e.now(),
	}
	s.Queue.Remove(g.PlayerIDs()...)
	c.Status = CourtInGame
	c.CurrentGame = g

	team1Names := s.playerNames(team1.PlayerIDs())
	team2Names := s.playerNames(team2.PlayerIDs())
	e.record(ActivityGameStarted,
		fmt.Sprintf("Game started on %s: %s vs %s", c.Name, strings.Join(team1Names, " & "), strings.Join(team2Names, " & ")),
		&ActivityDetails{
			PlayerIDs:  g.PlayerIDs(),
			CourtID:    c.ID,
			CourtName:  c.Name,
			Team1Names: team1Names,
			Team2Names: team2Names,
		})
	return g
}

// EndGame records the result, credits occupied seats only and re-queues the
// participants at the tail. In winners-stay modes losers are queued before
// winners.
func (e *Engine) EndGame(courtID string, winner Team, score *Score) (Game, error) {
	if !winner.Valid() {
		return Game{}, ErrInvalidTeam
	}
	s, c, err := e.court(courtID)
	if err != nil {
		return Game{}, err
	}
	if c.Status != CourtInGame || c.CurrentGame == nil {
		return Game{}, ErrNoGameInProgress
	}
	g := c.CurrentGame
	winners := g.Side(winner).PlayerIDs()
	losers := g.Side(winner.Other()).PlayerIDs()
	if len(winners) == 0 {
		return Game{}, ErrTeamEmpty
	}

	ended := e.now()
	g.EndedAt = &ended
	w := winner
	g.Winner = &w
	if score != nil {
		sc := *score
		g.Score = &sc
	}

	for _, id := range g.PlayerIDs() {
		if p := s.PlayerByID(id); p != nil {
			p.GamesPlayed++
			if g.Side(winner).Contains(id) {
				p.GamesWon++
			}
		}
	}

	requeue := g.PlayerIDs()
	if s.RotationMode.WinnersStay() {
		requeue = append(losers, winners...)
	}
	for _, id := range requeue {
		s.Queue.Enqueue(id, false)
	}

	c.Status = CourtAvailable
	c.CurrentGame = nil
	s.GamesCompleted = append(s.GamesCompleted, g)

	message := fmt.Sprintf("%s: %s defeated %s", c.Name,
		strings.Join(s.playerNames(winners), " & "), strings.Join(s.playerNames(losers), " & "))
	if len(losers) == 0 {
		message = fmt.Sprintf("%s: %s won against an empty team", c.Name, strings.Join(s.playerNames(winners), " & "))
	}
	e.record(ActivityGameEnded, message,
		&ActivityDetails{
			PlayerIDs:  g.PlayerIDs(),
			CourtID:    c.ID,
			CourtName:  c.Name,
			Winner:     &w,
			Team1Names: s.playerNames(g.Team1.PlayerIDs()),
			Team2Names: s.playerNames(g.Team2.PlayerIDs()),
		})

	if s.AutoAssignOnEnd && s.RotationMode.WinnersStay() {
		e.autoAssign(s, c)
	}
	return *g.clone(), nil
}

// CancelGame discards the game without history, returns its players to the
// head of the queue (team1 first) and parks the court in maintenance.
func (e *Engine) CancelGame(courtID string) error {
	s, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	if c.Status != CourtInGame || c.CurrentGame == nil {
		return ErrNoGameInProgress
	}

	ids := c.CurrentGame.PlayerIDs()
	for i, id := range ids {
		s.Queue.InsertAt(id, i)
	}
	c.Status = CourtMaintenance
	c.CurrentGame = nil

	names := s.playerNames(ids)
	e.record(ActivityGameEnded,
		fmt.Sprintf("%s: Game cancelled - %s returned to queue", c.Name, strings.Join(names, ", ")),
		&ActivityDetails{PlayerIDs: ids, PlayerNames: names, CourtID: c.ID, CourtName: c.Name})
	return nil
}

// SwapPlayers exchanges two seats of the game in progress. Either seat may be vacant.
func (e *Engine) SwapPlayers(courtID string, fromTeam Team, fromSlot int, toTeam Team, toSlot int) error {
	if err := checkSeat(fromTeam, fromSlot); err != nil {
		return err
	}
	if err := checkSeat(toTeam, toSlot); err != nil {
		return err
	}
	_, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	if c.CurrentGame == nil {
		return ErrNoGameInProgress
	}
	g := c.CurrentGame
	from, to := &g.Side(fromTeam)[fromSlot], &g.Side(toTeam)[toSlot]
	*from, *to = *to, *from
	return nil
}

// RemovePlayerFromGame vacates a seat and puts its player second in line,
// leaving the head of the queue to whoever has waited longest.
func (e *Engine) RemovePlayerFromGame(courtID string, team Team, slot int) error {
	if err := checkSeat(team, slot); err != nil {
		return err
	}
	s, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	if c.CurrentGame == nil {
		return ErrNoGameInProgress
	}
	seat := &c.CurrentGame.Side(team)[slot]
	id, ok := seat.PlayerID()
	if !ok {
		return ErrSlotVacant
	}

	*seat = Vacant()
	s.Queue.InsertAt(id, 1)

	name := s.playerName(id)
	e.record(ActivityPlayerRemoved,
		fmt.Sprintf("%s removed from %s and moved to 2nd in queue", name, c.Name),
		&ActivityDetails{PlayerIDs: []string{id}, PlayerNames: []string{name}, CourtID: c.ID, CourtName: c.Name})
	return nil
}

// PullPlayerToGame fills a vacant seat with the head of the queue.
func (e *Engine) PullPlayerToGame(courtID string, team Team, slot int) error {
	if err := checkSeat(team, slot); err != nil {
		return err
	}
	s, c, err := e.court(courtID)
	if err != nil {
		return err
	}
	if c.CurrentGame == nil {
		return ErrNoGameInProgress
	}
	seat := &c.CurrentGame.Side(team)[slot]
	if seat.Occupied() {
		return ErrSlotOccupied
	}
	if len(s.Queue) == 0 {
		return ErrQueueEmpty
	}

	id := s.Queue[0]
	s.Queue = s.Queue[1:]
	*seat = Seat(id)

	name := s.playerName(id)
	e.record(ActivityPlayerAdded,
		fmt.Sprintf("%s pulled from queue to %s", name, c.Name),
		&ActivityDetails{PlayerIDs: []string{id}, PlayerNames: []string{name}, CourtID: c.ID, CourtName: c.Name})
	return nil
}

func checkSeat(team Team, slot int) error {
	if !team.Valid() {
		return ErrInvalidTeam
	}
	if slot < 0 || slot > 1 {
		return ErrInvalidSlot
	}
	return nil
}
