// Package identity bridges asynchronous proof verification against the chat
// sessions that requested it, behind a pluggable provider adapter.
package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/metrics"
)

// Pending is a proof request awaiting its verification callback.
type Pending struct {
	ThreadID string
	ChatID   int64
	UserID   int64
}

// Correlator maps provider-issued thread ids to the originating chat/user
// pair. Entries are consumed on resolve and never expire otherwise; they are
// held in memory only and lost on restart.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]Pending
}

// NewCorrelator returns an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]Pending)}
}

// Register records a pending proof request. A duplicate thread id overwrites
// the previous registration (last writer wins); this is surfaced with a
// warning since thread ids are assumed provider-unique.
func (c *Correlator) Register(threadID string, chatID, userID int64) {
	c.mu.Lock()
	prev, existed := c.pending[threadID]
	c.pending[threadID] = Pending{ThreadID: threadID, ChatID: chatID, UserID: userID}
	size := len(c.pending)
	c.mu.Unlock()

	if existed {
		logger.Warn(context.Background(), "identity", "correlator.overwrite",
			slog.String("thread_id", threadID),
			slog.Int64("prev_chat_id", prev.ChatID),
			slog.Int64("chat_id", chatID),
		)
	}
	metrics.PendingProofs.Set(float64(size))
}

// Resolve consumes and returns the registration for threadID. An unknown
// thread id is not an error: it means no interested party, and the caller is
// expected to acknowledge the callback regardless.
func (c *Correlator) Resolve(threadID string) (Pending, bool) {
	c.mu.Lock()
	p, ok := c.pending[threadID]
	if ok {
		delete(c.pending, threadID)
	}
	size := len(c.pending)
	c.mu.Unlock()

	metrics.PendingProofs.Set(float64(size))
	return p, ok
}

// Len reports the number of registrations awaiting a callback.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
