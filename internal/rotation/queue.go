package rotation

import "slices"

// Queue is the wait order of player ids. Index 0 plays next. Ids are unique.
type Queue []string

func (q Queue) IndexOf(playerID string) int {
	return slices.Index(q, playerID)
}

func (q Queue) Contains(playerID string) bool {
	return q.IndexOf(playerID) != -1
}

// Enqueue adds the player at the tail, or at the head when atFront is set.
// It reports false when the player was already queued.
func (q *Queue) Enqueue(playerID string, atFront bool) bool {
	if q.Contains(playerID) {
		return false
	}
	if atFront {
		*q = slices.Insert(*q, 0, playerID)
	} else {
		*q = append(*q, playerID)
	}
	return true
}

func (q *Queue) Dequeue(playerID string) bool {
	i := q.IndexOf(playerID)
	if i == -1 {
		return false
	}
	*q = slices.Delete(*q, i, i+1)
	return true
}

// InsertAt places the player at index i (clamped to the queue length),
// removing any earlier occurrence first.
func (q *Queue) InsertAt(playerID string, i int) {
	q.Dequeue(playerID)
	if i < 0 {
		i = 0
	}
	if i > len(*q) {
		i = len(*q)
	}
	*q = slices.Insert(*q, i, playerID)
}

// MoveUp swaps the player with the neighbour toward the head and returns the
// new index. The head element cannot move up.
func (q Queue) MoveUp(playerID string) (int, bool) {
	i := q.IndexOf(playerID)
	if i <= 0 {
		return i, false
	}
	q[i-1], q[i] = q[i], q[i-1]
	return i - 1, true
}

// MoveDown swaps the player with the neighbour toward the tail. The last
// element cannot move down.
func (q Queue) MoveDown(playerID string) (int, bool) {
	i := q.IndexOf(playerID)
	if i == -1 || i == len(q)-1 {
		return i, false
	}
	q[i], q[i+1] = q[i+1], q[i]
	return i + 1, true
}

func (q *Queue) MoveToFront(playerID string) bool {
	i := q.IndexOf(playerID)
	if i <= 0 {
		return false
	}
	*q = slices.Delete(*q, i, i+1)
	*q = slices.Insert(*q, 0, playerID)
	return true
}

// Remove drops every id in ids from the queue, preserving the order of the rest.
func (q *Queue) Remove(ids ...string) {
	*q = slices.DeleteFunc(*q, func(id string) bool {
		return slices.Contains(ids, id)
	})
}

func (q Queue) clone() Queue {
	out := make(Queue, len(q))
	copy(out, q)
	return out
}
