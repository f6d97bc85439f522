package middleware

import (
	"testing"
	"time"
)

func TestSlidingWindowCeiling(t *testing.T) {
	win := NewSlidingWindow(time.Hour, 100)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		if !win.Admit(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("request %d rejected under ceiling", i+1)
		}
	}
	if win.Admit(base.Add(101 * time.Second)) {
		t.Fatal("101st request within the window should be rejected")
	}
	if got := win.Len(); got != 100 {
		t.Fatalf("rejected request was recorded: len = %d, want 100", got)
	}
}

func TestSlidingWindowEviction(t *testing.T) {
	win := NewSlidingWindow(time.Hour, 2)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if !win.Admit(base) || !win.Admit(base.Add(time.Minute)) {
		t.Fatal("initial requests rejected")
	}
	if win.Admit(base.Add(2 * time.Minute)) {
		t.Fatal("third request within the window should be rejected")
	}

	// Past the window, the first stamps are evicted and admission resumes.
	later := base.Add(time.Hour + 2*time.Minute)
	if !win.Admit(later) {
		t.Fatal("admission should resume after the window passes")
	}
	if got := win.Len(); got != 1 {
		t.Fatalf("stale stamps not evicted: len = %d, want 1", got)
	}
}

func TestSlidingWindowRejectionNotRecorded(t *testing.T) {
	win := NewSlidingWindow(time.Minute, 1)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	win.Admit(base)
	for i := 0; i < 5; i++ {
		if win.Admit(base.Add(time.Duration(i) * time.Second)) {
			t.Fatal("over-ceiling request admitted")
		}
	}
	// One slot frees up exactly when the first stamp leaves the window.
	if !win.Admit(base.Add(time.Minute + time.Second)) {
		t.Fatal("rejections must not extend the window")
	}
}
