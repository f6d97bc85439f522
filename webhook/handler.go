// Package webhook receives verification callbacks from the identity vendor.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/evalscience/deepgov-bot/core/logger"
	"github.com/evalscience/deepgov-bot/identity"
	"github.com/evalscience/deepgov-bot/metrics"
	"github.com/evalscience/deepgov-bot/security"
	"github.com/evalscience/deepgov-bot/store"
)

const (
	presentationResultType = "present-proof/presentation-result"
	resultProofValidated   = "ProofValidated"

	maxBodySize = 1 << 20
)

// Notifier pushes the verification outcome back into the chat that started
// it.
type Notifier interface {
	VerificationResult(ctx context.Context, chatID, userID int64, verified bool)
}

// ProfileStore is the subset of the profile repository the handler needs.
type ProfileStore interface {
	Upsert(ctx context.Context, args store.UpsertArgs) error
}

// Handler processes vendor callbacks. Every delivery is acknowledged with
// 202 regardless of outcome: the vendor retries on anything else, and a
// malformed or unmatched event will not get better on retry.
type Handler struct {
	correlator *identity.Correlator
	profiles   ProfileStore
	notifier   Notifier
	pseudo     *security.Pseudonymizer
}

// NewHandler wires the callback processor.
func NewHandler(correlator *identity.Correlator, profiles ProfileStore, notifier Notifier, pseudo *security.Pseudonymizer) *Handler {
	return &Handler{correlator: correlator, profiles: profiles, notifier: notifier, pseudo: pseudo}
}

type event struct {
	Type               string `json:"type"`
	Thid               string `json:"thid"`
	ThreadID           string `json:"threadId"`
	VerificationResult string `json:"verification_result"`
	HolderDID          string `json:"holder_did"`
	Presentation       struct {
		RevealedAttrs map[string][]struct {
			Value string `json:"value"`
		} `json:"revealed_attrs"`
	} `json:"requested_presentation"`
}

func (e *event) threadID() string {
	if e.Thid != "" {
		return e.Thid
	}
	return e.ThreadID
}

// ServeHTTP implements the vendor callback endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer w.WriteHeader(http.StatusAccepted)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("read_error").Inc()
		logger.Warn(ctx, "webhook", "event.read_failed", slog.String("error", err.Error()))
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		logger.Warn(ctx, "webhook", "event.malformed", slog.String("error", err.Error()))
		return
	}

	if ev.Type != presentationResultType {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		logger.Debug(ctx, "webhook", "event.ignored", slog.String("type", logger.SanitizeLimit(ev.Type, 64)))
		return
	}

	threadID := ev.threadID()
	pending, ok := h.correlator.Resolve(threadID)
	if !ok {
		metrics.WebhookEvents.WithLabelValues("unknown_thread").Inc()
		logger.Warn(ctx, "webhook", "event.unknown_thread", slog.String("thread_id", logger.SanitizeLimit(threadID, 64)))
		return
	}

	verified := ev.VerificationResult == resultProofValidated
	if verified {
		if err := h.storeProfile(ctx, pending.UserID, &ev); err != nil {
			logger.Error(ctx, "webhook", "profile.upsert_failed",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
		}
		metrics.WebhookEvents.WithLabelValues("verified").Inc()
	} else {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
	}

	logger.Info(ctx, "webhook", "event.resolved",
		slog.String("thread_id", threadID),
		slog.Int64("chat_id", pending.ChatID),
		slog.Bool("verified", verified),
	)
	h.notifier.VerificationResult(ctx, pending.ChatID, pending.UserID, verified)
}

func (h *Handler) storeProfile(ctx context.Context, userID int64, ev *event) error {
	claims := claimsFrom(ev)
	return h.profiles.Upsert(ctx, store.UpsertArgs{
		UserID:      h.pseudo.Stable(strconv.FormatInt(userID, 10)),
		DID:         claims.DID,
		Gender:      claims.Gender,
		DateOfBirth: claims.DateOfBirth,
		Citizenship: claims.Citizenship,
		Address1:    claims.Address1,
		Address2:    claims.Address2,
		Address3:    claims.Address3,
	})
}

func claimsFrom(ev *event) identity.Claims {
	attr := func(name string) string {
		vals := ev.Presentation.RevealedAttrs[name]
		if len(vals) == 0 {
			return ""
		}
		return vals[0].Value
	}
	return identity.Claims{
		DID:         ev.HolderDID,
		Gender:      attr("Gender"),
		DateOfBirth: attr("Date of Birth"),
		Citizenship: attr("Citizenship"),
		Address1:    attr("Village"),
		Address2:    attr("Gewog"),
		Address3:    attr("Dzongkhag"),
	}
}
