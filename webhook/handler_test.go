package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evalscience/deepgov-bot/identity"
	"github.com/evalscience/deepgov-bot/security"
	"github.com/evalscience/deepgov-bot/store"
)

type fakeProfiles struct {
	upserts []store.UpsertArgs
}

func (f *fakeProfiles) Upsert(_ context.Context, args store.UpsertArgs) error {
	f.upserts = append(f.upserts, args)
	return nil
}

type fakeNotifier struct {
	calls []bool
	chats []int64
}

func (f *fakeNotifier) VerificationResult(_ context.Context, chatID, _ int64, verified bool) {
	f.calls = append(f.calls, verified)
	f.chats = append(f.chats, chatID)
}

func newTestHandler(t *testing.T) (*Handler, *identity.Correlator, *fakeProfiles, *fakeNotifier) {
	t.Helper()
	pseudo, err := security.NewPseudonymizer("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	corr := identity.NewCorrelator()
	profiles := &fakeProfiles{}
	notifier := &fakeNotifier{}
	return NewHandler(corr, profiles, notifier, pseudo), corr, profiles, notifier
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

const validatedEvent = `{
	"type": "present-proof/presentation-result",
	"thid": "thread-1",
	"verification_result": "ProofValidated",
	"holder_did": "did:example:abc",
	"requested_presentation": {
		"revealed_attrs": {
			"Gender": [{"value": "F"}],
			"Date of Birth": [{"value": "1990-01-01"}],
			"Citizenship": [{"value": "Bhutanese"}],
			"Village": [{"value": "Chang"}]
		}
	}
}`

func TestValidatedProofUpsertsAndNotifiesOnce(t *testing.T) {
	h, corr, profiles, notifier := newTestHandler(t)
	corr.Register("thread-1", 42, 7)

	rec := post(t, h, validatedEvent)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	if len(profiles.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(profiles.upserts))
	}
	up := profiles.upserts[0]
	if up.DID != "did:example:abc" || up.Gender != "F" || up.Citizenship != "Bhutanese" || up.Address1 != "Chang" {
		t.Fatalf("upsert args = %+v", up)
	}
	if up.UserID == "7" || up.UserID == "" {
		t.Fatalf("user id must be pseudonymized, got %q", up.UserID)
	}

	if len(notifier.calls) != 1 || !notifier.calls[0] {
		t.Fatalf("notifications = %v, want exactly one success", notifier.calls)
	}
	if notifier.chats[0] != 42 {
		t.Fatalf("notified chat %d, want 42", notifier.chats[0])
	}

	if _, ok := corr.Resolve("thread-1"); ok {
		t.Fatal("thread must be consumed by the delivery")
	}
}

func TestRejectedProofNotifiesWithoutUpsert(t *testing.T) {
	h, corr, profiles, notifier := newTestHandler(t)
	corr.Register("thread-1", 42, 7)

	body := `{"type":"present-proof/presentation-result","thid":"thread-1","verification_result":"ProofInvalid"}`
	rec := post(t, h, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(profiles.upserts) != 0 {
		t.Fatal("rejected proof must not write a profile")
	}
	if len(notifier.calls) != 1 || notifier.calls[0] {
		t.Fatalf("notifications = %v, want exactly one failure", notifier.calls)
	}
}

func TestUnknownThreadStillAccepted(t *testing.T) {
	h, _, profiles, notifier := newTestHandler(t)

	rec := post(t, h, validatedEvent)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(profiles.upserts) != 0 || len(notifier.calls) != 0 {
		t.Fatal("unmatched event must be dropped silently")
	}
}

func TestMalformedBodyStillAccepted(t *testing.T) {
	h, _, _, notifier := newTestHandler(t)

	rec := post(t, h, "{not json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("malformed event must not notify")
	}
}

func TestUnrelatedEventTypeIgnored(t *testing.T) {
	h, corr, profiles, notifier := newTestHandler(t)
	corr.Register("thread-1", 42, 7)

	rec := post(t, h, `{"type":"connections/invitation","thid":"thread-1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(profiles.upserts) != 0 || len(notifier.calls) != 0 {
		t.Fatal("unrelated event type must be ignored")
	}
	if _, ok := corr.Resolve("thread-1"); !ok {
		t.Fatal("ignored event must not consume the registration")
	}
}
