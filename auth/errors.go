package auth

import (
	"errors"
	"fmt"
)

// ErrMissingClientCredentials means the machine flow was selected but the
// client id or secret is absent from the environment. The caller has to fix
// configuration; there is nothing to retry.
var ErrMissingClientCredentials = errors.New("auth: machine client id or secret not configured")

// Device flow terminal and non-terminal error codes, as sent by the
// authorization server.
const (
	errAuthorizationPending = "authorization_pending"
	errSlowDown             = "slow_down"
	errExpiredToken         = "expired_token"
	errAccessDenied         = "access_denied"
)

// FlowError is a failed OAuth exchange: a non-2xx token endpoint response or
// a 2xx response missing access_token. Code and Description carry whatever
// the server said, since the server's error taxonomy is the actionable part.
type FlowError struct {
	Status      int    // HTTP status of the response
	Code        string // server "error" field, empty when none was provided
	Description string // server "error_description" field
}

func (e *FlowError) Error() string {
	if e.Code != "" {
		if e.Description != "" {
			return fmt.Sprintf("auth: token exchange failed: %s (%s)", e.Code, e.Description)
		}
		return fmt.Sprintf("auth: token exchange failed: %s", e.Code)
	}
	return fmt.Sprintf("auth: token exchange failed: invalid response (status %d)", e.Status)
}

// AuthenticationError means the whole session could not be authenticated:
// the interactive flow was denied, expired, or unreachable. It wraps the
// terminal flow error when there is one.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth: authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
