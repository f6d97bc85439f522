package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeCompleter struct {
	calls []string // previousID per call
	fail  bool
}

func (f *fakeCompleter) Create(_ context.Context, _, _, previousID string) (Reply, error) {
	f.calls = append(f.calls, previousID)
	if f.fail {
		return Reply{}, errors.New("vendor down")
	}
	return Reply{ResponseID: fmt.Sprintf("resp-%d", len(f.calls)), Text: "reply"}, nil
}

type fakeAudit struct {
	done chan struct{}
	err  error
}

func (f *fakeAudit) InsertResponse(context.Context, int64, int64, string) error {
	defer close(f.done)
	return f.err
}

func TestHandleChainsCursor(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewService(fc, nil, "prompt")

	if _, err := s.Handle(context.Background(), 1, 1, "hi"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := s.Handle(context.Background(), 1, 1, "again"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if fc.calls[0] != "" {
		t.Fatalf("first turn carried previous id %q, want empty", fc.calls[0])
	}
	if fc.calls[1] != "resp-1" {
		t.Fatalf("second turn previous id = %q, want resp-1", fc.calls[1])
	}
}

func TestHandleCursorsAreIndependentPerChat(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewService(fc, nil, "prompt")

	if _, err := s.Handle(context.Background(), 1, 1, "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Handle(context.Background(), 2, 2, "hi"); err != nil {
		t.Fatal(err)
	}
	if fc.calls[1] != "" {
		t.Fatalf("chat 2 inherited chat 1's cursor: %q", fc.calls[1])
	}
}

func TestHandleFailureKeepsCursor(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewService(fc, nil, "prompt")

	if _, err := s.Handle(context.Background(), 1, 1, "hi"); err != nil {
		t.Fatal(err)
	}
	fc.fail = true
	if _, err := s.Handle(context.Background(), 1, 1, "again"); err == nil {
		t.Fatal("expected vendor error")
	}
	fc.fail = false
	if _, err := s.Handle(context.Background(), 1, 1, "retry"); err != nil {
		t.Fatal(err)
	}
	if got := fc.calls[2]; got != "resp-1" {
		t.Fatalf("retry previous id = %q, want resp-1 (failed turn must not advance)", got)
	}
}

func TestHandleAuditFailureDoesNotBlockReply(t *testing.T) {
	fa := &fakeAudit{done: make(chan struct{}), err: errors.New("db down")}
	s := NewService(&fakeCompleter{}, fa, "prompt")

	text, err := s.Handle(context.Background(), 1, 7, "hi")
	if err != nil {
		t.Fatalf("audit failure leaked into reply path: %v", err)
	}
	if text != "reply" {
		t.Fatalf("text = %q", text)
	}

	select {
	case <-fa.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit insert was never attempted")
	}
}

func TestResetDropsCursor(t *testing.T) {
	fc := &fakeCompleter{}
	s := NewService(fc, nil, "prompt")

	if _, err := s.Handle(context.Background(), 1, 1, "hi"); err != nil {
		t.Fatal(err)
	}
	s.Reset(1)
	if _, err := s.Handle(context.Background(), 1, 1, "fresh"); err != nil {
		t.Fatal(err)
	}
	if fc.calls[1] != "" {
		t.Fatalf("turn after reset carried previous id %q", fc.calls[1])
	}
}
