package auth

import "context"

// ScopeAdmin marks an actor as an administrator.
const ScopeAdmin = "admin"

// Actor is the resolved identity behind a request: the user an API key
// belongs to plus the scopes granted to that key.
type Actor struct {
	UserID string
	Name   string
	Scopes []string
}

// Admin reports whether the actor carries the admin scope.
func (a Actor) Admin() bool {
	for _, s := range a.Scopes {
		if s == ScopeAdmin {
			return true
		}
	}
	return false
}

// Owns reports whether the actor is the owner identified by userID.
func (a Actor) Owns(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}

// APIKey holds the stored identity and permission data for an API key.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}
