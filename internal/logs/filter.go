package logs

import (
	"encoding/json"
	"strings"

	"walkeryt/internal/logging"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects JSON log lines. Zero fields match everything.
type Filter struct {
	RunID    string
	TrackID  string
	MinLevel string
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f.RunID == "" && f.TrackID == "" && f.MinLevel == ""
}

// Match reports whether line passes the filter. Lines that are not JSON
// objects only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return false
	}
	if f.RunID != "" && stringField(event, logging.FieldRunID) != f.RunID {
		return false
	}
	if f.TrackID != "" && stringField(event, logging.FieldTrackID) != f.TrackID {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		got, known := levelRank[stringField(event, "level")]
		if ok && (!known || got < want) {
			return false
		}
	}
	return true
}

func stringField(event map[string]any, key string) string {
	value, _ := event[key].(string)
	return value
}
