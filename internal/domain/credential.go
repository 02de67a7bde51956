package domain

import "time"

// Credential is the single Cloudbeds OAuth credential for the deployment.
// It lives in one row (id=1); the vault refreshes it in place and it is never
// deleted during normal operation.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"` // seconds, relative to UpdatedAt
	Scope        string    `json:"scope"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExpiresAt is the derived expiry instant of the access token.
func (c *Credential) ExpiresAt() time.Time {
	return c.UpdatedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}
