package identity

import "context"

// VerificationRequest is the deep link handed back to the user after a
// provider accepted a proof request.
type VerificationRequest struct {
	ThreadID string
	DeepLink string
}

// Provider starts identity verification flows against a concrete vendor.
// Implementations register the issued thread id with the correlator so the
// eventual webhook callback can be routed back to the chat.
type Provider interface {
	// Name identifies the provider in logs and configuration.
	Name() string
	// StartVerification creates a proof request for the given chat/user and
	// returns the link the user follows in their wallet app.
	StartVerification(ctx context.Context, chatID, userID int64) (VerificationRequest, error)
}

// Claims are the identity attributes revealed by a successful proof,
// consumed opportunistically from the provider's callback payload.
type Claims struct {
	DID         string
	Gender      string
	DateOfBirth string
	Citizenship string
	Address1    string
	Address2    string
	Address3    string
}
