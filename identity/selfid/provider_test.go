package selfid

import (
	"context"
	"net/url"
	"strings"
	"testing"

	coreconfig "github.com/evalscience/deepgov-bot/core/config"
	"github.com/evalscience/deepgov-bot/identity"
)

func TestSubjectIDDeterministic(t *testing.T) {
	a := SubjectID(12345)
	b := SubjectID(12345)
	if a != b {
		t.Fatalf("same user produced different ids: %s vs %s", a, b)
	}
	if a == SubjectID(54321) {
		t.Fatal("different users must not share a subject id")
	}
}

func TestStartVerificationRegistersSession(t *testing.T) {
	corr := identity.NewCorrelator()
	p := NewProvider(coreconfig.SelfConfig{
		AppName:  "deepgov",
		Scope:    "deepgov-verify",
		Endpoint: "https://bot.example/webhook",
		LinkBase: "https://redirect.self.xyz",
	}, corr)
	p.newSession = func() string { return "session-1" }

	req, err := p.StartVerification(context.Background(), 7, 11)
	if err != nil {
		t.Fatalf("StartVerification: %v", err)
	}
	if req.ThreadID != "session-1" {
		t.Fatalf("thread id = %q", req.ThreadID)
	}
	if !strings.HasPrefix(req.DeepLink, "https://redirect.self.xyz?selfApp=") {
		t.Fatalf("deep link = %q", req.DeepLink)
	}
	raw, err := url.QueryUnescape(strings.TrimPrefix(req.DeepLink, "https://redirect.self.xyz?selfApp="))
	if err != nil {
		t.Fatalf("unescape payload: %v", err)
	}
	if !strings.Contains(raw, `"sessionId":"session-1"`) || !strings.Contains(raw, `"scope":"deepgov-verify"`) {
		t.Fatalf("payload missing fields: %s", raw)
	}

	pending, ok := corr.Resolve("session-1")
	if !ok || pending.ChatID != 7 || pending.UserID != 11 {
		t.Fatalf("session not registered: %+v ok=%v", pending, ok)
	}
}
