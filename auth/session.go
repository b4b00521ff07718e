package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/rfcx/rfcx-sdk-go/credentials"
)

// Environment variables consumed by the session manager. Presence of both
// machine variables selects the client-credentials flow.
const (
	EnvClientID        = "RFCX_CLIENT_ID"
	EnvClientSecret    = "RFCX_CLIENT_SECRET"
	EnvAuthURL         = "RFCX_AUTH_URL"
	EnvCredentialsPath = "RFCX_CREDENTIALS_PATH"
)

// Authenticator resolves one valid credential for the process, preferring
// cheap paths over expensive ones:
//
//  1. machine client id+secret in the environment → fresh client-credentials
//     exchange (never persisted)
//  2. persisted record, parses, expiry beyond the skew → reuse as-is
//  3. persisted record with a refresh token → refresh exchange; a failed
//     refresh falls through rather than aborting
//  4. interactive device flow, persisted afterwards unless disabled
type Authenticator struct {
	provider     *Provider
	store        *credentials.FileStore
	log          zerolog.Logger
	out          io.Writer
	persist      bool
	machineID    string
	clientSecret string
	openBrowser  func(url string) error

	cred *credentials.Credential
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithPersist controls whether interactive results are written to the
// persisted record. Defaults to true.
func WithPersist(persist bool) Option {
	return func(a *Authenticator) { a.persist = persist }
}

// WithCredentialsPath overrides the persisted record location.
func WithCredentialsPath(path string) Option {
	return func(a *Authenticator) { a.store = credentials.NewFileStore(path) }
}

// WithProvider replaces the token provider, mainly for tests.
func WithProvider(p *Provider) Option {
	return func(a *Authenticator) { a.provider = p }
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Authenticator) { a.log = log }
}

// WithOutput sets where device-flow user instructions are written.
// Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Authenticator) { a.out = w }
}

// NewAuthenticator builds an Authenticator from the environment plus
// options.
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		provider:     NewProvider(os.Getenv(EnvAuthURL), os.Getenv(EnvClientID)),
		store:        credentials.NewFileStore(os.Getenv(EnvCredentialsPath)),
		log:          zerolog.Nop(),
		out:          os.Stdout,
		persist:      true,
		machineID:    os.Getenv(EnvClientID),
		clientSecret: os.Getenv(EnvClientSecret),
		openBrowser:  openBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Credentials returns the resolved credential, or nil before a successful
// Authenticate.
func (a *Authenticator) Credentials() *credentials.Credential { return a.cred }

// Authenticate resolves a valid credential. It is idempotent per process:
// once resolved, later calls reuse the in-memory credential without any
// network or disk access.
func (a *Authenticator) Authenticate(ctx context.Context) (*credentials.Credential, error) {
	if a.cred != nil {
		return a.cred, nil
	}

	if a.clientSecret != "" {
		// Machine tokens are cheap and stateless, so they are exchanged
		// fresh on every run and never persisted.
		cred, err := a.provider.ClientCredentials(ctx, a.machineID, a.clientSecret)
		if err != nil {
			return nil, err
		}
		a.log.Info().Msg("Authenticated with machine credentials")
		a.cred = cred
		return cred, nil
	}

	if cred := a.fromPersisted(ctx); cred != nil {
		a.cred = cred
		return cred, nil
	}

	cred, err := a.deviceFlow(ctx)
	if err != nil {
		return nil, err
	}
	a.cred = cred
	if a.persist {
		if err := a.store.Save(cred); err != nil {
			a.log.Warn().Err(err).Msg("Failed to persist credentials")
		}
	}
	return cred, nil
}

// fromPersisted tries the persisted record: reuse it when still valid, or
// refresh it when it carries a refresh token. Returns nil when neither path
// produced a usable credential.
func (a *Authenticator) fromPersisted(ctx context.Context) *credentials.Credential {
	cred, err := a.store.Load()
	if err != nil {
		if errors.Is(err, credentials.ErrMalformedRecord) {
			a.log.Warn().Str("path", a.store.Path).Msg("Ignoring malformed credentials file")
		} else if !os.IsNotExist(err) {
			a.log.Warn().Err(err).Msg("Failed to read credentials file")
		}
		return nil
	}

	if cred.Valid(nowUTC()) {
		a.log.Info().Msg("Using persisted authentication")
		return cred
	}

	if cred.RefreshToken == "" {
		return nil
	}
	refreshed, err := a.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// A broken refresh token is not fatal, it just means
		// re-authenticate interactively.
		a.log.Warn().Err(err).Msg("Token refresh failed")
		return nil
	}
	a.log.Info().Msg("Using persisted authentication (with token refresh)")
	if a.persist {
		if err := a.store.Save(refreshed); err != nil {
			a.log.Warn().Err(err).Msg("Failed to persist refreshed credentials")
		}
	}
	return refreshed
}

func (a *Authenticator) deviceFlow(ctx context.Context) (*credentials.Credential, error) {
	dc, err := a.provider.RequestDeviceCode(ctx)
	if err != nil {
		return nil, &AuthenticationError{Reason: "could not obtain a device code", Err: err}
	}

	fmt.Fprintf(a.out, "Go to this URL in a browser: %s\nYour code is: %s\n", dc.VerificationURIComplete, dc.UserCode)
	if a.openBrowser != nil {
		// Best effort; the URL was already printed.
		_ = a.openBrowser(dc.VerificationURIComplete)
	}

	cred, err := a.provider.PollDeviceToken(ctx, dc)
	if err != nil {
		return nil, &AuthenticationError{Reason: "device authorization was not completed", Err: err}
	}
	a.log.Info().Msg("Authenticated")
	return cred, nil
}

func nowUTC() time.Time { return time.Now().UTC() }

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	}
	return fmt.Errorf("unsupported platform %s", runtime.GOOS)
}
