// Package selfid implements the Self-protocol identity provider: verification
// happens entirely through a deep link, with no proof-request API call.
package selfid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	coreconfig "github.com/evalscience/deepgov-bot/core/config"
	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/identity"
)

// namespace for deriving stable per-user UUIDs from Telegram user ids.
var userNamespace = uuid.MustParse("a9a1cdc2-4a45-48d3-b07c-3bfe8b2e3e5f")

// Provider builds Self universal links and tracks their sessions in the
// correlator. Each verification attempt gets a fresh session id; the user id
// is derived deterministically so repeat verifications map to the same
// subject.
type Provider struct {
	cfg        coreconfig.SelfConfig
	correlator *identity.Correlator

	// newSession is swappable for tests.
	newSession func() string
}

// NewProvider returns a Self provider bound to the correlator.
func NewProvider(cfg coreconfig.SelfConfig, correlator *identity.Correlator) *Provider {
	return &Provider{
		cfg:        cfg,
		correlator: correlator,
		newSession: uuid.NewString,
	}
}

// Name implements identity.Provider.
func (p *Provider) Name() string { return "self" }

// SubjectID derives the stable UUID used as the Self userId for a Telegram
// user.
func SubjectID(userID int64) string {
	return uuid.NewSHA1(userNamespace, []byte(fmt.Sprintf("%d", userID))).String()
}

// StartVerification builds the universal link and registers the session id as
// the correlation thread for the eventual callback.
func (p *Provider) StartVerification(ctx context.Context, chatID, userID int64) (identity.VerificationRequest, error) {
	sessionID := p.newSession()

	app := map[string]any{
		"appName":    p.cfg.AppName,
		"scope":      p.cfg.Scope,
		"endpoint":   p.cfg.Endpoint,
		"userId":     SubjectID(userID),
		"sessionId":  sessionID,
		"userIdType": "uuid",
	}
	encoded, err := json.Marshal(app)
	if err != nil {
		return identity.VerificationRequest{}, fmt.Errorf("selfid: marshal app config: %w", err)
	}

	p.correlator.Register(sessionID, chatID, userID)
	logger.Info(ctx, "identity", "proof.requested",
		slog.String("provider", "self"),
		slog.String("thread_id", sessionID),
	)

	link := p.cfg.LinkBase + "?selfApp=" + url.QueryEscape(string(encoded))
	return identity.VerificationRequest{ThreadID: sessionID, DeepLink: link}, nil
}
