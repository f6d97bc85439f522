package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/metrics"
)

// Completer runs one model turn. Implemented by *Client; faked in tests.
type Completer interface {
	Create(ctx context.Context, systemPrompt, userText, previousID string) (Reply, error)
}

// Audit records a completed turn for bookkeeping. Failures are logged and
// never surfaced to the user.
type Audit interface {
	InsertResponse(ctx context.Context, userID, chatID int64, responseID string) error
}

const auditTimeout = 10 * time.Second

// Service owns the per-chat response cursors. Cursors live in memory only; a
// restart starts every chat on a fresh thread.
type Service struct {
	completer    Completer
	audit        Audit
	systemPrompt string

	mu      sync.Mutex
	cursors map[int64]string
}

// NewService builds a turn handler. audit may be nil to disable bookkeeping.
func NewService(completer Completer, audit Audit, systemPrompt string) *Service {
	return &Service{
		completer:    completer,
		audit:        audit,
		systemPrompt: systemPrompt,
		cursors:      make(map[int64]string),
	}
}

// Handle runs one conversation turn for the chat and returns the reply text.
// The chat's cursor advances only on success, so a failed turn retries
// against the same thread position. The audit insert runs detached from the
// reply path.
func (s *Service) Handle(ctx context.Context, chatID, userID int64, text string) (string, error) {
	s.mu.Lock()
	previousID := s.cursors[chatID]
	s.mu.Unlock()

	start := time.Now()
	reply, err := s.completer.Create(ctx, s.systemPrompt, text, previousID)
	if err != nil {
		metrics.ConversationTurns.WithLabelValues("error").Inc()
		metrics.VendorErrors.WithLabelValues("openai").Inc()
		logger.Error(ctx, "ai", "turn.failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
			slog.Duration("took", logger.Took(start)),
		)
		return "", err
	}

	s.mu.Lock()
	s.cursors[chatID] = reply.ResponseID
	s.mu.Unlock()

	metrics.ConversationTurns.WithLabelValues("ok").Inc()
	logger.Info(ctx, "ai", "turn.completed",
		slog.Int64("chat_id", chatID),
		slog.String("response_id", reply.ResponseID),
		slog.Duration("took", logger.Took(start)),
	)

	if s.audit != nil {
		go s.recordTurn(context.WithoutCancel(ctx), userID, chatID, reply.ResponseID)
	}
	return reply.Text, nil
}

func (s *Service) recordTurn(ctx context.Context, userID, chatID int64, responseID string) {
	ctx, cancel := context.WithTimeout(ctx, auditTimeout)
	defer cancel()

	if err := s.audit.InsertResponse(ctx, userID, chatID, responseID); err != nil {
		logger.Warn(ctx, "ai", "turn.audit_failed",
			slog.String("response_id", responseID),
			slog.String("error", err.Error()),
		)
	}
}

// Reset drops the chat's cursor so the next turn starts a fresh thread.
func (s *Service) Reset(chatID int64) {
	s.mu.Lock()
	delete(s.cursors, chatID)
	s.mu.Unlock()
}
