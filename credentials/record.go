package credentials

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// The persisted record is a fixed 5-line plain-text file:
//
//	version 1
//	<access token>
//	<refresh token, empty line if absent>
//	<expiry, ISO-8601 UTC with fractional seconds>
//	<id token>
//
// Anything not matching this shape exactly is treated as no credential.

const recordVersion = "version 1"

const (
	expiryWriteLayout = "2006-01-02T15:04:05.000000Z"
	expiryReadLayout  = "2006-01-02T15:04:05.999999999Z"
)

// ErrMalformedRecord reports a persisted record that does not have the
// expected version tag or line count. Callers treat it as "no usable
// credential", never as a fatal error.
var ErrMalformedRecord = errors.New("credentials: malformed persisted record")

// MarshalRecord renders the credential in persisted-record form.
func MarshalRecord(c *Credential) []byte {
	var b strings.Builder
	b.WriteString(recordVersion + "\n")
	b.WriteString(c.AccessToken + "\n")
	b.WriteString(c.RefreshToken + "\n")
	b.WriteString(c.Expiry.UTC().Format(expiryWriteLayout) + "\n")
	b.WriteString(c.IDToken + "\n")
	return []byte(b.String())
}

// UnmarshalRecord parses a persisted record back into a Credential. It
// returns ErrMalformedRecord (possibly wrapped) whenever the record does not
// have exactly the expected shape.
func UnmarshalRecord(data []byte) (*Credential, error) {
	// Strip at most one trailing newline: the id token line may itself be
	// empty, which a broader trim would swallow.
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 5 {
		return nil, fmt.Errorf("%w: expected 5 lines, got %d", ErrMalformedRecord, len(lines))
	}
	if lines[0] != recordVersion {
		return nil, fmt.Errorf("%w: unknown version tag %q", ErrMalformedRecord, lines[0])
	}
	if lines[1] == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrMalformedRecord)
	}
	expiry, err := time.Parse(expiryReadLayout, lines[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad expiry %q", ErrMalformedRecord, lines[3])
	}
	return &Credential{
		AccessToken:  lines[1],
		RefreshToken: lines[2],
		Expiry:       expiry,
		IDToken:      lines[4],
	}, nil
}
