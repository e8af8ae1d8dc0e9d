package liveevent

import (
	"strconv"
	"strings"
	"time"
)

// UpdateEvent is the push channel event carrying live match patches.
const UpdateEvent = "live-events:update"

const (
	FieldStatus     = "status"
	FieldHomeScore  = "home_score"
	FieldAwayScore  = "away_score"
	FieldLastEvent  = "last_event"
	FieldMinute     = "minute"
	FieldLastUpdate = "lastUpdate"
)

// Record is the merged live state of one match. Fields are whatever the push
// channel has sent so far; the typed accessors cover the common ones.
type Record map[string]any

// Map holds live records by match id. Treat it as immutable once published.
type Map map[string]Record

func (r Record) Status() string {
	value, _ := r[FieldStatus].(string)
	return value
}

func (r Record) HomeScore() (int, bool) {
	return intField(r[FieldHomeScore])
}

func (r Record) AwayScore() (int, bool) {
	return intField(r[FieldAwayScore])
}

func (r Record) Minute() (int, bool) {
	return intField(r[FieldMinute])
}

func (r Record) LastEvent() string {
	value, _ := r[FieldLastEvent].(string)
	return value
}

func (r Record) LastUpdate() (time.Time, bool) {
	raw, ok := r[FieldLastUpdate].(string)
	if !ok {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func intField(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
