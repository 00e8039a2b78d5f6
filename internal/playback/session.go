package playback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

// Recorder is the slice of the progress service a session writes through.
type Recorder interface {
	UpdateWatchTime(ctx context.Context, userID, courseID, lessonID string, watchTime float64, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error)
	MarkLessonCompletedBy(ctx context.Context, trigger, userID, courseID, lessonID string, totalDuration *float64, totalCourseLessons *int) (*types.CourseProgress, error)
}

type Timers struct {
	Detection       time.Duration
	Tick            time.Duration
	ReadyEscalation time.Duration
	Safety          time.Duration
	WriteTimeout    time.Duration
}

func DefaultTimers() Timers {
	return Timers{
		Detection:       15 * time.Second,
		Tick:            time.Second,
		ReadyEscalation: 60 * time.Second,
		Safety:          120 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
}

type SessionParams struct {
	UserID             string
	CourseID           string
	LessonID           string
	Duration           *float64
	TotalCourseLessons *int
}

// Session is one lesson view. A single goroutine owns the tracker and every timer; callers
// only send events or ask it to stop.
type Session struct {
	ID     string
	Params SessionParams

	log      *logger.Logger
	recorder Recorder
	timers   Timers
	tracker  *Tracker

	events chan PlaybackEvent
	stop   chan struct{}
	done   chan struct{}

	stopOnce         sync.Once
	completedTrigger string
}

func newSession(log *logger.Logger, rec Recorder, timers Timers, th Thresholds, p SessionParams) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Params:   p,
		log:      log.With("playback_session", id, "lesson_id", p.LessonID),
		recorder: rec,
		timers:   timers,
		tracker:  NewTracker(th, p.Duration),
		events:   make(chan PlaybackEvent, 32),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Deliver queues ev. It returns false once the session ended or its queue is full.
func (s *Session) Deliver(ev PlaybackEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("playback event dropped; queue full", "type", string(ev.Type))
		return false
	}
}

func (s *Session) Done() <-chan struct{} { return s.done }

// CompletedTrigger is only meaningful after Done is closed.
func (s *Session) CompletedTrigger() string {
	<-s.done
	return s.completedTrigger
}

func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) run(ctx context.Context) {
	detect := time.NewTimer(s.timers.Detection)
	safety := time.NewTimer(s.timers.Safety)
	var ticker *time.Ticker
	var tickC <-chan time.Time
	var ready *time.Timer
	var readyC <-chan time.Time

	defer func() {
		detect.Stop()
		safety.Stop()
		if ticker != nil {
			ticker.Stop()
		}
		if ready != nil {
			ready.Stop()
		}
		close(s.done)
	}()

	for {
		var actions []Action
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			s.drain(ctx)
			s.apply(ctx, s.tracker.Flush())
			return
		case ev := <-s.events:
			actions = s.tracker.Observe(ev)
			if ticker != nil && !s.tracker.FallbackActive() {
				ticker.Stop()
				ticker, tickC = nil, nil
			}
		case <-detect.C:
			if s.tracker.StartFallback() {
				s.log.Debug("no player messages, starting local watch timer")
				ticker = time.NewTicker(s.timers.Tick)
				tickC = ticker.C
			}
		case <-tickC:
			actions = s.tracker.Tick(s.timers.Tick.Seconds())
		case <-readyC:
			actions = s.tracker.ForceComplete(TriggerReadyEscalation)
		case <-safety.C:
			actions = s.tracker.ForceComplete(TriggerSafetyTimeout)
		}

		for _, a := range actions {
			if a.Kind == ActionArmReadyEscalation && ready == nil {
				ready = time.NewTimer(s.timers.ReadyEscalation)
				readyC = ready.C
			}
		}
		s.apply(ctx, actions)
		if s.tracker.State() == StateCompleted {
			return
		}
	}
}

// drain applies events that were queued before a stop request.
func (s *Session) drain(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			s.apply(ctx, s.tracker.Observe(ev))
		default:
			return
		}
	}
}

func (s *Session) apply(ctx context.Context, actions []Action) {
	p := s.Params
	for _, a := range actions {
		switch a.Kind {
		case ActionPush:
			wctx, cancel := context.WithTimeout(ctx, s.timers.WriteTimeout)
			_, err := s.recorder.UpdateWatchTime(wctx, p.UserID, p.CourseID, p.LessonID, a.WatchTime, a.Duration, p.TotalCourseLessons)
			cancel()
			if err != nil {
				s.log.Warn("watch time push failed", "watch_time", a.WatchTime, "error", err)
			}
		case ActionComplete:
			s.completedTrigger = a.Trigger
			wctx, cancel := context.WithTimeout(ctx, s.timers.WriteTimeout)
			_, err := s.recorder.MarkLessonCompletedBy(wctx, a.Trigger, p.UserID, p.CourseID, p.LessonID, a.Duration, p.TotalCourseLessons)
			cancel()
			if err != nil {
				s.log.Error("lesson completion write failed", "trigger", a.Trigger, "error", err)
				continue
			}
			observability.Current().IncPlaybackEvent("completed:" + a.Trigger)
			s.log.Info("lesson completed by playback", "trigger", a.Trigger, "watch_time", a.WatchTime)
		}
	}
}
