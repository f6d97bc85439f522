package identity

import "testing"

func TestCorrelatorRegisterResolve(t *testing.T) {
	c := NewCorrelator()
	c.Register("t1", 5, 9)

	p, ok := c.Resolve("t1")
	if !ok {
		t.Fatal("expected registered thread to resolve")
	}
	if p.ChatID != 5 || p.UserID != 9 {
		t.Fatalf("resolved {chat:%d user:%d}, want {chat:5 user:9}", p.ChatID, p.UserID)
	}
}

func TestCorrelatorResolveIsOneShot(t *testing.T) {
	c := NewCorrelator()
	c.Register("t1", 5, 9)

	if _, ok := c.Resolve("t1"); !ok {
		t.Fatal("first resolve should hit")
	}
	if _, ok := c.Resolve("t1"); ok {
		t.Fatal("second resolve must miss: entries are consumed")
	}
}

func TestCorrelatorUnknownThread(t *testing.T) {
	c := NewCorrelator()
	if _, ok := c.Resolve("missing"); ok {
		t.Fatal("unknown thread id must not resolve")
	}
}

func TestCorrelatorDuplicateRegisterLastWriterWins(t *testing.T) {
	c := NewCorrelator()
	c.Register("t1", 1, 1)
	c.Register("t1", 2, 2)

	if got := c.Len(); got != 1 {
		t.Fatalf("duplicate register must overwrite, len = %d", got)
	}
	p, ok := c.Resolve("t1")
	if !ok || p.ChatID != 2 || p.UserID != 2 {
		t.Fatalf("resolved %+v, want latest registration", p)
	}
}
