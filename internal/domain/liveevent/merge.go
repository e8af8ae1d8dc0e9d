package liveevent

import "time"

// Merge returns a new record: existing fields, overwritten field by field by
// patch, stamped with lastUpdate. Fields missing from patch are kept. Neither
// input is modified.
func Merge(existing Record, patch map[string]any, now time.Time) Record {
	out := make(Record, len(existing)+len(patch)+1)
	for key, value := range existing {
		out[key] = value
	}
	for key, value := range patch {
		out[key] = value
	}
	out[FieldLastUpdate] = now.UTC().Format(time.RFC3339Nano)
	return out
}

// With returns a copy of m where only matchID points at record. Other records
// are shared, not copied.
func (m Map) With(matchID string, record Record) Map {
	out := make(Map, len(m)+1)
	for key, value := range m {
		out[key] = value
	}
	out[matchID] = record
	return out
}

// Apply merges patch into the record for matchID and returns the new map.
func (m Map) Apply(matchID string, patch map[string]any, now time.Time) Map {
	return m.With(matchID, Merge(m[matchID], patch, now))
}
