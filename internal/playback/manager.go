package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

var (
	ErrSessionNotFound = errors.New("playback session not found")
	ErrNotOwner        = errors.New("playback session belongs to another user")
	ErrInvalidSession  = errors.New("userId, courseId and lessonId are required")
	ErrClosed          = errors.New("playback manager is shut down")

	errFinished = errors.New("playback session already finished")
)

const defaultFinishedTTL = 10 * time.Minute

type ManagerConfig struct {
	Timers     Timers
	Thresholds Thresholds
	// FinishedTTL is how long an ended session id keeps answering events and teardown as
	// no-ops.
	FinishedTTL time.Duration
}

type finishedSession struct {
	userID string
	at     time.Time
}

// Manager tracks live sessions by id. Starting a new view of the same lesson for the same
// user stops the previous one.
type Manager struct {
	log      *logger.Logger
	recorder Recorder
	cfg      ManagerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	byLesson map[string]string
	finished map[string]finishedSession
	closed   bool
	now      func() time.Time
}

func NewManager(log *logger.Logger, recorder Recorder, cfg ManagerConfig) *Manager {
	if cfg.Timers == (Timers{}) {
		cfg.Timers = DefaultTimers()
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.FinishedTTL <= 0 {
		cfg.FinishedTTL = defaultFinishedTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:      log.With("component", "PlaybackManager"),
		recorder: recorder,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*Session{},
		byLesson: map[string]string{},
		finished: map[string]finishedSession{},
		now:      time.Now,
	}
}

func lessonKey(p SessionParams) string {
	return p.UserID + "|" + p.CourseID + "|" + p.LessonID
}

func (m *Manager) Start(p SessionParams) (*Session, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	p.CourseID = strings.TrimSpace(p.CourseID)
	p.LessonID = strings.TrimSpace(p.LessonID)
	if p.UserID == "" || p.CourseID == "" || p.LessonID == "" {
		return nil, ErrInvalidSession
	}

	s := newSession(m.log, m.recorder, m.cfg.Timers, m.cfg.Thresholds, p)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	key := lessonKey(p)
	if prevID, ok := m.byLesson[key]; ok {
		if prev := m.sessions[prevID]; prev != nil {
			prev.requestStop()
		}
	}
	m.sessions[s.ID] = s
	m.byLesson[key] = s.ID
	m.wg.Add(1)
	m.mu.Unlock()

	observability.Current().PlaybackSessionStarted()
	go func() {
		defer m.wg.Done()
		s.run(m.ctx)
		m.forget(s)
		observability.Current().PlaybackSessionEnded()
	}()
	return s, nil
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID)
	key := lessonKey(s.Params)
	if m.byLesson[key] == s.ID {
		delete(m.byLesson, key)
	}
	now := m.now()
	for id, f := range m.finished {
		if now.Sub(f.at) > m.cfg.FinishedTTL {
			delete(m.finished, id)
		}
	}
	m.finished[s.ID] = finishedSession{userID: s.Params.UserID, at: now}
}

// lookup returns errFinished for an owner asking about a session that already ended.
func (m *Manager) lookup(sessionID, userID string) (*Session, error) {
	m.mu.Lock()
	s := m.sessions[sessionID]
	f, ended := m.finished[sessionID]
	if ended && m.now().Sub(f.at) > m.cfg.FinishedTTL {
		delete(m.finished, sessionID)
		ended = false
	}
	m.mu.Unlock()
	if s == nil {
		if !ended {
			return nil, ErrSessionNotFound
		}
		if f.userID != userID {
			return nil, ErrNotOwner
		}
		return nil, errFinished
	}
	if s.Params.UserID != userID {
		return nil, ErrNotOwner
	}
	return s, nil
}

// Deliver normalizes raw and hands it to the session. Unparseable payloads and events for a
// session that already ended are ignored and reported as not accepted without an error.
func (m *Manager) Deliver(sessionID, userID string, raw []byte) (bool, error) {
	s, err := m.lookup(sessionID, userID)
	if errors.Is(err, errFinished) {
		observability.Current().IncPlaybackEvent("ignored")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ev, ok := Normalize(raw)
	if !ok {
		observability.Current().IncPlaybackEvent("ignored")
		return false, nil
	}
	observability.Current().IncPlaybackEvent(string(ev.Type))
	return s.Deliver(ev), nil
}

// Stop ends the session after flushing any unsaved watch time. Stopping a session that
// already ended is a no-op.
func (m *Manager) Stop(sessionID, userID string) error {
	s, err := m.lookup(sessionID, userID)
	if errors.Is(err, errFinished) {
		return nil
	}
	if err != nil {
		return err
	}
	s.requestStop()
	<-s.Done()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown cancels every session without further writes and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}
