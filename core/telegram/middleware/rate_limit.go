package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/evalscience/deepgov-bot/core/logger"
	tghelpers "github.com/evalscience/deepgov-bot/core/telegram/helpers"
)

// SlidingWindow admits at most Ceiling requests within the trailing Window.
// Timestamps older than the window are evicted lazily on each admission
// check. A rejected request is not recorded.
type SlidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	ceiling int
	stamps  []time.Time
}

// NewSlidingWindow builds a window limiter with the given bounds.
func NewSlidingWindow(window time.Duration, ceiling int) *SlidingWindow {
	return &SlidingWindow{window: window, ceiling: ceiling}
}

// Admit reports whether a request arriving at now fits under the ceiling,
// recording it when admitted.
func (w *SlidingWindow) Admit(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.ceiling {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Len returns the number of timestamps currently recorded.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stamps)
}

// WindowProvider resolves the sliding window belonging to a user's session.
type WindowProvider interface {
	Window(userID int64) *SlidingWindow
}

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Sessions  WindowProvider
	OnLimited tele.HandlerFunc
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// RateLimitMiddleware enforces the per-session sliding-window ceiling.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Sessions == nil {
				return next(c)
			}

			win := opts.Sessions.Window(user.ID)
			if win == nil || win.Admit(now()) {
				return next(c)
			}

			ctx := tghelpers.BuildContext(c)
			logger.Warn(ctx, "tg", "tg.rate_limit",
				slog.Int64("user_id", user.ID),
				slog.Int("in_window", win.Len()),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
