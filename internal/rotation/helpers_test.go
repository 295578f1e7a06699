package rotation_test

import (
	"fmt"
	"testing"
	"time"

	"openplay-server/internal/rotation"
)

var sessionStart = time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)

// newTestEngine creates an engine with a ticking clock and sequential ids and
// starts a session with the given mode and court count.
func newTestEngine(t *testing.T, mode rotation.RotationMode, courts int) *rotation.Engine {
	t.Helper()

	clock := sessionStart
	seq := 0
	e := rotation.NewEngine(
		rotation.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		rotation.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)

	if _, err := e.CreateSession(rotation.SessionConfig{
		Name:         "Tuesday Open Play",
		CourtCount:   courts,
		RotationMode: mode,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return e
}

// addPlayers checks players in at the tail and returns their ids by name.
func addPlayers(t *testing.T, e *rotation.Engine, names ...string) map[string]string {
	t.Helper()

	ids := make(map[string]string, len(names))
	for _, name := range names {
		p, err := e.AddPlayer(name, nil, false)
		if err != nil {
			t.Fatalf("add player %s: %v", name, err)
		}
		ids[name] = p.ID
	}
	return ids
}

func queueNames(e *rotation.Engine) []string {
	names := []string{}
	for _, p := range e.PlayersInQueue() {
		names = append(names, p.Name)
	}
	return names
}

func pairNames(s *rotation.Session, p rotation.Pair) []string {
	names := []string{}
	for _, id := range p.PlayerIDs() {
		if player := s.PlayerByID(id); player != nil {
			names = append(names, player.Name)
		}
	}
	return names
}

func firstCourt(t *testing.T, e *rotation.Engine) string {
	t.Helper()
	s := e.Snapshot()
	if s == nil || len(s.Courts) == 0 {
		t.Fatal("no court available")
	}
	return s.Courts[0].ID
}

// assertInvariants checks the queue/seat disjointness and the court status
// invariant on a snapshot.
func assertInvariants(t *testing.T, s *rotation.Session) {
	t.Helper()

	queued := make(map[string]bool)
	for _, id := range s.Queue {
		if queued[id] {
			t.Errorf("player %s queued twice", id)
		}
		queued[id] = true
	}

	seated := make(map[string]string)
	for _, c := range s.Courts {
		if (c.Status == rotation.CourtInGame) != (c.CurrentGame != nil) {
			t.Errorf("court %s has status %s but currentGame=%v", c.Name, c.Status, c.CurrentGame != nil)
		}
		if c.CurrentGame == nil {
			continue
		}
		for _, id := range c.CurrentGame.PlayerIDs() {
			if queued[id] {
				t.Errorf("player %s is both queued and seated on %s", id, c.Name)
			}
			if other, ok := seated[id]; ok {
				t.Errorf("player %s seated on %s and %s", id, other, c.Name)
			}
			seated[id] = c.Name
		}
	}

	for _, g := range s.GamesCompleted {
		if g.EndedAt == nil || g.Winner == nil {
			t.Errorf("completed game %s missing endedAt or winner", g.ID)
		}
	}
}
