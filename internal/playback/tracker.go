package playback

import "math"

type State int

const (
	StateIdle State = iota
	StateTracking
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Completion triggers, recorded on the lesson row.
const (
	TriggerMessageThreshold       = "message_threshold"
	TriggerMessageUnknownDuration = "message_unknown_duration"
	TriggerFallbackThreshold      = "fallback_threshold"
	TriggerFallbackUnknown        = "fallback_unknown_duration"
	TriggerEnded                  = "ended"
	TriggerSafetyTimeout          = "safety_timeout"
	TriggerReadyEscalation        = "ready_escalation"
)

type Thresholds struct {
	PushEvery            float64 // seconds of playback between message-driven pushes
	SeekJump             float64 // a larger jump pushes immediately
	FallbackPushEvery    float64
	MessageCompleteFrac  float64
	FallbackCompleteFrac float64
	UnknownDurationSecs  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PushEvery:            10,
		SeekJump:             30,
		FallbackPushEvery:    30,
		MessageCompleteFrac:  0.75,
		FallbackCompleteFrac: 0.90,
		UnknownDurationSecs:  90,
	}
}

type ActionKind int

const (
	ActionPush ActionKind = iota + 1
	ActionComplete
	ActionArmReadyEscalation
)

type Action struct {
	Kind      ActionKind
	WatchTime float64
	Duration  *float64
	Trigger   string
}

// Tracker turns player events and fallback ticks into progress writes. It holds no timers
// and is not safe for concurrent use; Session owns one per lesson view.
type Tracker struct {
	th    Thresholds
	state State

	duration *float64
	position float64
	lastPush float64
	pushed   bool

	messageSeen    bool
	readySeen      bool
	fallbackActive bool
	fallbackTime   float64
	fallbackPushed float64
}

func NewTracker(th Thresholds, knownDuration *float64) *Tracker {
	t := &Tracker{th: th}
	if knownDuration != nil && *knownDuration > 0 {
		d := *knownDuration
		t.duration = &d
	}
	return t
}

func (t *Tracker) State() State { return t.state }

func (t *Tracker) FallbackActive() bool { return t.fallbackActive }

func (t *Tracker) WatchTime() float64 {
	if t.fallbackActive {
		return t.fallbackTime
	}
	return t.position
}

func (t *Tracker) durationPtr() *float64 {
	if t.duration == nil {
		return nil
	}
	d := *t.duration
	return &d
}

func (t *Tracker) complete(trigger string) []Action {
	if t.state == StateCompleted {
		return nil
	}
	t.state = StateCompleted
	t.fallbackActive = false
	return []Action{{Kind: ActionComplete, Trigger: trigger, WatchTime: math.Max(t.position, t.fallbackTime), Duration: t.durationPtr()}}
}

// Observe applies one player event. Any message disables the local fallback counter.
func (t *Tracker) Observe(ev PlaybackEvent) []Action {
	if t.state == StateCompleted {
		return nil
	}
	t.messageSeen = true
	t.fallbackActive = false
	if ev.Duration != nil && *ev.Duration > 0 {
		d := *ev.Duration
		t.duration = &d
	}

	var out []Action
	switch ev.Type {
	case EventReady:
		if !t.readySeen {
			t.readySeen = true
			out = append(out, Action{Kind: ActionArmReadyEscalation})
		}
		return out
	case EventPlay:
		t.state = StateTracking
	case EventPause:
		if t.state == StateTracking {
			t.state = StatePaused
		}
	case EventEnded:
		if ev.CurrentTime != nil {
			t.position = *ev.CurrentTime
		}
		return t.complete(TriggerEnded)
	case EventDuration:
	case EventTimeUpdate, EventSeek:
		if ev.Type == EventTimeUpdate || t.state == StateIdle {
			t.state = StateTracking
		}
	}

	if ev.CurrentTime == nil {
		return out
	}
	now := *ev.CurrentTime
	t.position = now

	if t.duration != nil {
		if now >= *t.duration*t.th.MessageCompleteFrac {
			return append(out, t.complete(TriggerMessageThreshold)...)
		}
	} else if now >= t.th.UnknownDurationSecs {
		return append(out, t.complete(TriggerMessageUnknownDuration)...)
	}

	delta := now - t.lastPush
	if delta >= t.th.PushEvery || math.Abs(delta) > t.th.SeekJump {
		if now > 0 {
			t.lastPush = now
			t.pushed = true
			out = append(out, Action{Kind: ActionPush, WatchTime: now, Duration: t.durationPtr()})
		}
	}
	return out
}

// StartFallback switches to local counting when no player message arrived in the detection
// window. It reports whether the fallback is now running.
func (t *Tracker) StartFallback() bool {
	if t.messageSeen || t.state == StateCompleted {
		return false
	}
	t.fallbackActive = true
	if t.state == StateIdle {
		t.state = StateTracking
	}
	return true
}

// Tick advances the local counter by elapsed seconds.
func (t *Tracker) Tick(elapsed float64) []Action {
	if !t.fallbackActive || t.state == StateCompleted {
		return nil
	}
	t.fallbackTime += elapsed

	if t.duration != nil {
		if t.fallbackTime >= *t.duration*t.th.FallbackCompleteFrac {
			return t.complete(TriggerFallbackThreshold)
		}
	} else if t.fallbackTime >= t.th.UnknownDurationSecs {
		return t.complete(TriggerFallbackUnknown)
	}

	if t.fallbackTime-t.fallbackPushed >= t.th.FallbackPushEvery {
		t.fallbackPushed = t.fallbackTime
		return []Action{{Kind: ActionPush, WatchTime: t.fallbackTime, Duration: t.durationPtr()}}
	}
	return nil
}

// ForceComplete is used by the safety and ready-escalation timers.
func (t *Tracker) ForceComplete(trigger string) []Action {
	return t.complete(trigger)
}

// Flush returns a final push when playback advanced past the last write.
func (t *Tracker) Flush() []Action {
	if t.state == StateCompleted {
		return nil
	}
	w := t.WatchTime()
	if t.fallbackActive {
		if w <= t.fallbackPushed {
			return nil
		}
		t.fallbackPushed = w
	} else {
		if w <= 0 || (t.pushed && w == t.lastPush) {
			return nil
		}
		t.lastPush = w
		t.pushed = true
	}
	return []Action{{Kind: ActionPush, WatchTime: w, Duration: t.durationPtr()}}
}
