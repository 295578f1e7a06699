package rotation

// eligibleQueue lists queued players who may be selected: known, active and
// not seated. Inactive players keep their place but are skipped.
func eligibleQueue(s *Session) []string {
	var out []string
	for _, id := range s.Queue {
		p := s.PlayerByID(id)
		if p == nil || !p.IsActive || s.seatedOn(id) != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func lastGameOn(s *Session, courtID string) *Game {
	for i := len(s.GamesCompleted) - 1; i >= 0; i-- {
		if s.GamesCompleted[i].CourtID == courtID {
			return s.GamesCompleted[i]
		}
	}
	return nil
}

// stayingWinners returns the pair that won the last game on the court when
// both of them can play again.
func stayingWinners(s *Session, courtID string) (Pair, bool) {
	last := lastGameOn(s, courtID)
	if last == nil || last.Winner == nil {
		return Pair{}, false
	}
	winners := *last.Side(*last.Winner)
	if !winners.Full() {
		return Pair{}, false
	}
	for _, id := range winners.PlayerIDs() {
		p := s.PlayerByID(id)
		if p == nil || !p.IsActive || s.seatedOn(id) != nil {
			return Pair{}, false
		}
	}
	return winners, true
}

// SelectTeams decides who plays next on a freed court. Skill-based rotation is
// not differentiated from full rotation.
func SelectTeams(s *Session, courtID string) (team1, team2 Pair, ok bool) {
	eligible := eligibleQueue(s)

	switch s.RotationMode {
	case WinnersStay, KingOfCourt:
		if winners, stay := stayingWinners(s, courtID); stay {
			challengers := make([]string, 0, len(eligible))
			for _, id := range eligible {
				if !winners.Contains(id) {
					challengers = append(challengers, id)
				}
			}
			if len(challengers) >= 2 {
				return winners, NewPair(challengers[0], challengers[1]), true
			}
		}
	case FullRotation, SkillBased:
	}

	if len(eligible) >= 4 {
		return NewPair(eligible[0], eligible[1]), NewPair(eligible[2], eligible[3]), true
	}
	return Pair{}, Pair{}, false
}

// AutoAssignNextGame fills an available court from the queue according to the
// session's rotation mode. It returns nil without error when the court is not
// available or nobody can be matched.
func (e *Engine) AutoAssignNextGame(courtID string) (*Game, error) {
	s, c, err := e.court(courtID)
	if err != nil {
		return nil, err
	}
	g := e.autoAssign(s, c)
	if g == nil {
		return nil, nil
	}
	return g.clone(), nil
}

func (e *Engine) autoAssign(s *Session, c *Court) *Game {
	if c.Status != CourtAvailable {
		return nil
	}
	team1, team2, ok := SelectTeams(s, c.ID)
	if !ok {
		return nil
	}
	return e.seat(s, c, team1, team2)
}
