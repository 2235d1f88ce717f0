package models

import (
	"context"
	"time"
)

// OAuthStateTTL is the window in which an issued handshake may be consumed.
const OAuthStateTTL = 10 * time.Minute

// OAuthState is the ephemeral correlation record for one OAuth2/PKCE
// exchange. It is single-use: deleted on successful callback handling,
// otherwise swept once the TTL passes.
type OAuthState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"-"`
	AddedBy      string    `json:"added_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the handshake is outside its validity window.
func (s *OAuthState) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) >= OAuthStateTTL
}

// OAuthStateRepository defines persistence for in-flight handshakes.
type OAuthStateRepository interface {
	// Store persists a freshly issued handshake.
	Store(ctx context.Context, state *OAuthState) error

	// Get retrieves a handshake by its state token. Returns nil when absent.
	Get(ctx context.Context, state string) (*OAuthState, error)

	// Delete removes a consumed handshake.
	Delete(ctx context.Context, state string) error

	// DeleteExpired removes handshakes created before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
