package ndi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/identity"
	"github.com/evalscience/deepgov-bot/metrics"
)

// Provider adapts the verifier client to the identity.Provider interface.
type Provider struct {
	client     *Client
	correlator *identity.Correlator
	linkURL    string
}

// NewProvider wires a verifier client to the proof correlator. linkURL, when
// set, wraps the raw wallet deep link in a public landing page.
func NewProvider(client *Client, correlator *identity.Correlator, linkURL string) *Provider {
	return &Provider{client: client, correlator: correlator, linkURL: linkURL}
}

// Name implements identity.Provider.
func (p *Provider) Name() string { return "ndi" }

// StartVerification creates a proof request, subscribes the webhook to its
// thread, and registers the thread with the correlator. An expired cached
// token is invalidated and the request retried once.
func (p *Provider) StartVerification(ctx context.Context, chatID, userID int64) (identity.VerificationRequest, error) {
	req, err := p.client.CreateProofRequest(ctx)
	if statusOf(err) == http.StatusUnauthorized {
		p.client.InvalidateToken()
		req, err = p.client.CreateProofRequest(ctx)
	}
	if err != nil {
		metrics.VendorErrors.WithLabelValues("ndi").Inc()
		return identity.VerificationRequest{}, err
	}

	if err := p.client.SubscribeThread(ctx, req.ThreadID); err != nil {
		metrics.VendorErrors.WithLabelValues("ndi").Inc()
		return identity.VerificationRequest{}, err
	}

	p.correlator.Register(req.ThreadID, chatID, userID)
	logger.Info(ctx, "identity", "proof.requested",
		slog.String("provider", "ndi"),
		slog.String("thread_id", req.ThreadID),
	)

	link := req.DeepLink
	if p.linkURL != "" {
		link = p.linkURL + "?link=" + url.QueryEscape(req.DeepLink)
	}
	return identity.VerificationRequest{ThreadID: req.ThreadID, DeepLink: link}, nil
}
