package bot

import (
	"sync"
	"time"

	"github.com/evalscience/deepgov-bot/core/telegram/middleware"
)

// session is the in-memory per-user state: language preference and the
// request-admission window.
type session struct {
	lang   Lang
	window *middleware.SlidingWindow
}

// Sessions tracks per-user sessions. It implements
// middleware.WindowProvider so the rate limiter shares the same state.
type Sessions struct {
	mu      sync.Mutex
	byUser  map[int64]*session
	window  time.Duration
	ceiling int
}

// NewSessions builds a session manager with the given rate-limit bounds.
func NewSessions(window time.Duration, ceiling int) *Sessions {
	return &Sessions{
		byUser:  make(map[int64]*session),
		window:  window,
		ceiling: ceiling,
	}
}

func (s *Sessions) get(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok {
		sess = &session{
			lang:   LangEN,
			window: middleware.NewSlidingWindow(s.window, s.ceiling),
		}
		s.byUser[userID] = sess
	}
	return sess
}

// Window implements middleware.WindowProvider.
func (s *Sessions) Window(userID int64) *middleware.SlidingWindow {
	return s.get(userID).window
}

// Lang returns the user's language preference.
func (s *Sessions) Lang(userID int64) Lang {
	sess := s.get(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.lang
}

// SetLang stores the user's language preference.
func (s *Sessions) SetLang(userID int64, lang Lang) {
	sess := s.get(userID)
	s.mu.Lock()
	sess.lang = lang
	s.mu.Unlock()
}
