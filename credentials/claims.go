package credentials

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// claimNamespace prefixes the custom claims the authorization server puts on
// id tokens for legacy guardian-based deployments.
const claimNamespace = "https://rfcx.org/"

// IDClaims is the application metadata carried in an id token payload.
//
// The payload is read WITHOUT verifying the token signature. Treat it as a
// hint for display and site selection only, never as a verified identity
// assertion.
type IDClaims struct {
	Roles           []string
	AccessibleSites []string
	DefaultSite     string
}

// DecodeIDClaims extracts the JSON payload from a JWT-shaped id token.
func DecodeIDClaims(idToken string) (*IDClaims, error) {
	segments := strings.Split(idToken, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("credentials: wrong number of segments in id token: %d", len(segments))
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, fmt.Errorf("credentials: failed to decode id token payload: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("credentials: failed to parse id token payload: %w", err)
	}

	claims := &IDClaims{}
	if v, ok := raw[claimNamespace+"app_metadata"]; ok {
		var meta struct {
			AccessibleSites []string `json:"accessibleSites"`
			DefaultSite     string   `json:"defaultSite"`
		}
		if err := json.Unmarshal(v, &meta); err == nil {
			claims.AccessibleSites = meta.AccessibleSites
			claims.DefaultSite = meta.DefaultSite
		}
	}
	if v, ok := raw[claimNamespace+"roles"]; ok {
		var roles []string
		if err := json.Unmarshal(v, &roles); err == nil {
			claims.Roles = roles
		}
	}
	return claims, nil
}

// Claims decodes the application metadata from the credential's id token.
// Returns nil without error when no id token is present.
func (c *Credential) Claims() (*IDClaims, error) {
	if c.IDToken == "" {
		return nil, nil
	}
	return DecodeIDClaims(c.IDToken)
}
