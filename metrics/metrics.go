// Package metrics exposes prometheus instrumentation for the bot's vendor
// calls and webhook traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConversationTurns counts completed conversation turns by status.
	ConversationTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_conversation_turns_total",
		Help: "Conversation turns handled, by status.",
	}, []string{"status"})

	// VendorErrors counts failed outbound vendor calls by vendor name.
	VendorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_vendor_errors_total",
		Help: "Failed vendor API calls, by vendor.",
	}, []string{"vendor"})

	// WebhookEvents counts identity webhook deliveries by outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_webhook_events_total",
		Help: "Identity webhook deliveries, by outcome.",
	}, []string{"outcome"})

	// PendingProofs tracks correlator entries awaiting a callback.
	PendingProofs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_pending_proofs",
		Help: "Proof requests registered and not yet resolved.",
	})

	// Transcriptions counts voice-note transcriptions by outcome.
	Transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_transcriptions_total",
		Help: "Voice note transcriptions, by outcome.",
	}, []string{"outcome"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
