package models

import "time"

// Token is the OAuth2 bearer credential for PhonePe API calls. Owned by the
// token source and persisted encrypted at rest; never logged in plaintext.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidFor reports whether the token is still usable beyond the given safety
// margin. A token handed to a caller must outlive margin so an in-flight
// request doesn't race expiry.
func (t *Token) ValidFor(margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return time.Now().Add(margin).Before(t.ExpiresAt)
}
