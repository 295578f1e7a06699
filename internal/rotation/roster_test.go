package rotation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"openplay-server/internal/rotation"
)

func TestAddPlayer(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	skill := 4

	p, err := e.AddPlayer("  Alice ", &skill, false)
	assert.NoError(err)
	assert.Equal("Alice", p.Name)
	assert.Equal(4, *p.SkillLevel)
	assert.True(p.IsActive)
	assert.Zero(p.GamesPlayed)
	assert.False(p.CheckedInAt.IsZero())

	latest, _ := e.Snapshot().ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerAdded, latest.Type)
	assert.Equal("Alice joined the session", latest.Message)
	assert.Equal([]string{"Alice"}, latest.Details.PlayerNames)

	_, err = e.AddPlayer("   ", nil, false)
	assert.ErrorIs(err, rotation.ErrEmptyName)
}

func TestAddPlayerMoveToFront(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	addPlayers(t, e, "Alice", "Bob")

	_, err := e.AddPlayer("Cara", nil, true)
	assert.NoError(err)
	assert.Equal([]string{"Cara", "Alice", "Bob"}, queueNames(e))

	latest, _ := e.Snapshot().ActivityLog.Latest()
	assert.Equal("Cara added and moved to front of queue", latest.Message)
}

func TestIsNameDuplicate(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice")

	assert.True(e.IsNameDuplicate("ALICE"))
	assert.True(e.IsNameDuplicate("  alice  "))
	assert.False(e.IsNameDuplicate("Alicia"))

	// Inactive players still hold their name.
	_, err := e.TogglePlayerActive(ids["Alice"])
	assert.NoError(err)
	assert.True(e.IsNameDuplicate("alice"))

	// Queue membership does not matter either.
	assert.NoError(e.Dequeue(ids["Alice"]))
	assert.True(e.IsNameDuplicate("Alice"))

	_, err = e.AddPlayer("aLiCe", nil, false)
	assert.ErrorIs(err, rotation.ErrDuplicateName)
}

func TestAddPlayersBatch(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	addPlayers(t, e, "Alice")

	added, duplicates, err := e.AddPlayers("Bob, cara\nALICE;\n  ;Dee,bob", nil, false)
	assert.NoError(err)
	assert.Equal([]string{"ALICE"}, duplicates)
	assert.Len(added, 3)
	assert.Equal([]string{"Alice", "Bob", "cara", "Dee"}, queueNames(e))
}

// The first submitted name must end up next to play.
func TestAddPlayersBatchMoveToFrontKeepsOrder(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	addPlayers(t, e, "Alice", "Bob")

	added, duplicates, err := e.AddPlayers("Cara\nDee\nEve", nil, true)
	assert.NoError(err)
	assert.Empty(duplicates)
	assert.Len(added, 3)
	assert.Equal([]string{"Cara", "Dee", "Eve", "Alice", "Bob"}, queueNames(e))
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"A", "B C", "D"}, rotation.ParseNames(" A ,, B C ;\n\nD\n"))
	assert.Empty(t, rotation.ParseNames(" , ; \n"))
}

func TestRemovePlayer(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob", "Cara")

	assert.NoError(e.RemovePlayer(ids["Bob"]))

	s := e.Snapshot()
	assert.Nil(s.PlayerByID(ids["Bob"]))
	assert.Equal([]string{"Alice", "Cara"}, queueNames(e))
	latest, _ := s.ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerRemoved, latest.Type)

	assert.ErrorIs(e.RemovePlayer(ids["Bob"]), rotation.ErrPlayerNotFound)
}

func TestRemoveSeatedPlayerRejected(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	court := firstCourt(t, e)
	ids := addPlayers(t, e, "Alice", "Bob", "Cara", "Dee")
	_, err := e.AutoAssignNextGame(court)
	assert.NoError(err)

	before := e.Snapshot()
	assert.ErrorIs(e.RemovePlayer(ids["Alice"]), rotation.ErrPlayerInGame)
	assert.Equal(before, e.Snapshot())
}

func TestTogglePlayerActive(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice")

	active, err := e.TogglePlayerActive(ids["Alice"])
	assert.NoError(err)
	assert.False(active)
	assert.Empty(e.AvailablePlayers())
	// Inactive players keep their place in line.
	assert.Equal([]string{"Alice"}, queueNames(e))

	active, err = e.TogglePlayerActive(ids["Alice"])
	assert.NoError(err)
	assert.True(active)
	assert.Len(e.AvailablePlayers(), 1)

	_, err = e.TogglePlayerActive("missing")
	assert.ErrorIs(err, rotation.ErrPlayerNotFound)
}

func TestEnqueueIdempotent(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob")
	assert.NoError(e.Dequeue(ids["Alice"]))

	assert.NoError(e.Enqueue(ids["Alice"], false))
	once := e.Snapshot()
	assert.NoError(e.Enqueue(ids["Alice"], false))
	assert.NoError(e.Enqueue(ids["Alice"], true))

	assert.Equal(once, e.Snapshot())
	assert.Equal([]string{"Bob", "Alice"}, queueNames(e))

	latest, _ := once.ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerQueued, latest.Type)
}

func TestEnqueueAtFront(t *testing.T) {
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob")
	assert.NoError(t, e.Dequeue(ids["Bob"]))
	assert.NoError(t, e.Enqueue(ids["Bob"], true))
	assert.Equal(t, []string{"Bob", "Alice"}, queueNames(e))
}

func TestEnqueueSeatedPlayerRejected(t *testing.T) {
	e := newTestEngine(t, rotation.FullRotation, 1)
	court := firstCourt(t, e)
	ids := addPlayers(t, e, "Alice", "Bob", "Cara", "Dee")
	_, err := e.AutoAssignNextGame(court)
	assert.NoError(t, err)

	assert.ErrorIs(t, e.Enqueue(ids["Alice"], false), rotation.ErrPlayerInGame)
	assertInvariants(t, e.Snapshot())
}

func TestDequeueIdempotent(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob")

	assert.NoError(e.Dequeue(ids["Alice"]))
	once := e.Snapshot()
	assert.NoError(e.Dequeue(ids["Alice"]))
	assert.Equal(once, e.Snapshot())
	assert.Equal([]string{"Bob"}, queueNames(e))
}

func TestMoveUpAndDownBoundaries(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob", "Cara")

	before := e.Snapshot()
	assert.ErrorIs(e.MoveUp(ids["Alice"]), rotation.ErrQueueBoundary)
	assert.ErrorIs(e.MoveDown(ids["Cara"]), rotation.ErrQueueBoundary)
	assert.Equal(before, e.Snapshot())

	assert.NoError(e.MoveUp(ids["Cara"]))
	assert.Equal([]string{"Alice", "Cara", "Bob"}, queueNames(e))
	latest, _ := e.Snapshot().ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerMovedUp, latest.Type)
	assert.Equal("Cara moved up to position 2", latest.Message)

	assert.NoError(e.MoveDown(ids["Alice"]))
	assert.Equal([]string{"Cara", "Alice", "Bob"}, queueNames(e))
	latest, _ = e.Snapshot().ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerMovedDown, latest.Type)

	assert.NoError(e.Dequeue(ids["Bob"]))
	assert.ErrorIs(e.MoveUp(ids["Bob"]), rotation.ErrNotQueued)
}

func TestMoveToFront(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t, rotation.FullRotation, 1)
	ids := addPlayers(t, e, "Alice", "Bob", "Cara")

	assert.NoError(e.MoveToFront(ids["Cara"]))
	assert.Equal([]string{"Cara", "Alice", "Bob"}, queueNames(e))
	latest, _ := e.Snapshot().ActivityLog.Latest()
	assert.Equal(rotation.ActivityPlayerMovedFront, latest.Type)
	assert.Equal("Cara skipped to front of queue", latest.Message)

	logLen := e.Snapshot().ActivityLog.Len()
	assert.ErrorIs(e.MoveToFront(ids["Cara"]), rotation.ErrQueueBoundary)
	assert.Equal(logLen, e.Snapshot().ActivityLog.Len())
}

func TestWaitDuration(t *testing.T) {
	checkedIn := time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)
	p := rotation.Player{CheckedInAt: checkedIn}

	assert.Equal(t, 15*time.Minute, p.WaitDuration(checkedIn.Add(15*time.Minute)))
	assert.Zero(t, p.WaitDuration(checkedIn.Add(-time.Minute)))
}
