// Package credentials holds the token material obtained from the RFCx
// authorization server and its on-disk persisted form. It performs no
// network I/O; acquiring and refreshing tokens is the auth package's job.
package credentials

import "time"

// ExpirySkew is the safety margin applied when deciding whether an access
// token is still usable, so a token does not lapse mid-call.
const ExpirySkew = time.Hour

// Credential is one complete token exchange result. A Credential is either
// fully populated or absent; callers never see a partially filled one.
type Credential struct {
	AccessToken  string
	RefreshToken string // empty for machine (client-credentials) tokens
	IDToken      string // empty when the server issued none
	Expiry       time.Time
}

// Valid reports whether the access token can still be used at time now,
// keeping the ExpirySkew margin.
func (c *Credential) Valid(now time.Time) bool {
	return c.ValidWithSkew(now, ExpirySkew)
}

// ValidWithSkew is Valid with an explicit safety margin.
func (c *Credential) ValidWithSkew(now time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Expiry.After(now.Add(skew))
}
