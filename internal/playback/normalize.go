package playback

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type EventType string

const (
	EventReady      EventType = "ready"
	EventPlay       EventType = "play"
	EventPause      EventType = "pause"
	EventTimeUpdate EventType = "timeupdate"
	EventSeek       EventType = "seek"
	EventEnded      EventType = "ended"
	EventDuration   EventType = "duration"
)

// PlaybackEvent is a player message reduced to the fields the tracker reads.
type PlaybackEvent struct {
	Type        EventType `json:"type"`
	CurrentTime *float64  `json:"currentTime,omitempty"`
	Duration    *float64  `json:"duration,omitempty"`
}

var eventAliases = map[string]EventType{
	"ready":          EventReady,
	"playerready":    EventReady,
	"loaded":         EventReady,
	"loadedmetadata": EventReady,
	"play":           EventPlay,
	"playing":        EventPlay,
	"start":          EventPlay,
	"started":        EventPlay,
	"resume":         EventPlay,
	"pause":          EventPause,
	"paused":         EventPause,
	"timeupdate":     EventTimeUpdate,
	"time":           EventTimeUpdate,
	"playprogress":   EventTimeUpdate,
	"currenttime":    EventTimeUpdate,
	"getcurrenttime": EventTimeUpdate,
	"seek":           EventSeek,
	"seeked":         EventSeek,
	"seeking":        EventSeek,
	"ended":          EventEnded,
	"end":            EventEnded,
	"finish":         EventEnded,
	"finished":       EventEnded,
	"complete":       EventEnded,
	"completed":      EventEnded,
	"duration":       EventDuration,
	"durationchange": EventDuration,
	"getduration":    EventDuration,
}

var (
	nameKeys     = []string{"type", "event", "action", "method"}
	timeKeys     = []string{"currentTime", "current_time", "seconds", "time", "position"}
	durationKeys = []string{"duration", "totalDuration", "total_duration"}
	nestedKeys   = []string{"data", "value", "info"}
	bufferKeys   = []string{"percent", "loaded", "buffered"}
)

// progressEvent reads a generic "progress" message. Players that attach a percent or loaded
// figure report how much is buffered, not the playhead, so those are dropped.
func progressEvent(obj map[string]any) (EventType, bool) {
	if hasAnyKey(obj, bufferKeys) {
		return "", false
	}
	for _, nk := range nestedKeys {
		if nested, ok := obj[nk].(map[string]any); ok && hasAnyKey(nested, bufferKeys) {
			return "", false
		}
	}
	return EventTimeUpdate, true
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func canonicalName(raw string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "", ":", "", ".", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// Normalize parses a raw player message. Messages may be JSON objects or JSON strings that
// contain an object. Anything else is rejected.
func Normalize(raw []byte) (PlaybackEvent, bool) {
	var obj map[string]any
	if !decodeObject(raw, &obj, 2) {
		return PlaybackEvent{}, false
	}

	var ev PlaybackEvent
	name := ""
	for _, k := range nameKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			name = s
			break
		}
	}
	if name != "" {
		canon := canonicalName(name)
		t, ok := eventAliases[canon]
		if canon == "progress" {
			t, ok = progressEvent(obj)
		}
		if !ok {
			return PlaybackEvent{}, false
		}
		ev.Type = t
	}

	ev.CurrentTime = lookupNumber(obj, timeKeys)
	ev.Duration = lookupNumber(obj, durationKeys)

	// {"method":"getCurrentTime","value":12.5} style replies carry the number directly.
	if v, ok := toFloat(obj["value"]); ok {
		switch ev.Type {
		case EventTimeUpdate, EventSeek:
			if ev.CurrentTime == nil {
				ev.CurrentTime = &v
			}
		case EventDuration:
			if ev.Duration == nil {
				ev.Duration = &v
			}
		}
	}

	if ev.Type == "" {
		if ev.CurrentTime == nil {
			return PlaybackEvent{}, false
		}
		ev.Type = EventTimeUpdate
	}
	if ev.Duration != nil && *ev.Duration <= 0 {
		ev.Duration = nil
	}
	if ev.CurrentTime != nil && *ev.CurrentTime < 0 {
		ev.CurrentTime = nil
	}
	return ev, true
}

func decodeObject(raw []byte, out *map[string]any, depth int) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || depth < 0 {
		return false
	}
	switch raw[0] {
	case '{':
		return json.Unmarshal(raw, out) == nil && *out != nil
	case '"':
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return false
		}
		return decodeObject([]byte(inner), out, depth-1)
	}
	return false
}

func lookupNumber(obj map[string]any, keys []string) *float64 {
	for _, k := range keys {
		if v, ok := toFloat(obj[k]); ok {
			return &v
		}
	}
	for _, nk := range nestedKeys {
		nested, ok := obj[nk].(map[string]any)
		if !ok {
			continue
		}
		for _, k := range keys {
			if v, ok := toFloat(nested[k]); ok {
				return &v
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
