package rotation

import (
	"encoding/json"
	"slices"
)

// ActivityLog stores entries oldest-first and presents them newest-first,
// so appending never reallocates the whole history.
type ActivityLog struct {
	entries []ActivityLogEntry
}

func (l *ActivityLog) append(e ActivityLogEntry) {
	l.entries = append(l.entries, e)
}

func (l ActivityLog) Len() int {
	return len(l.entries)
}

// Latest returns the newest entry.
func (l ActivityLog) Latest() (ActivityLogEntry, bool) {
	if len(l.entries) == 0 {
		return ActivityLogEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a newest-first copy.
func (l ActivityLog) Entries() []ActivityLogEntry {
	out := slices.Clone(l.entries)
	slices.Reverse(out)
	if out == nil {
		out = []ActivityLogEntry{}
	}
	return out
}

func (l ActivityLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

func (l *ActivityLog) UnmarshalJSON(b []byte) error {
	var entries []ActivityLogEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	slices.Reverse(entries)
	l.entries = entries
	return nil
}

func (l ActivityLog) clone() ActivityLog {
	return ActivityLog{entries: slices.Clone(l.entries)}
}
