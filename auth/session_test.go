package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfcx/rfcx-sdk-go/credentials"
)

// authServer scripts the authorization server and counts requests per
// endpoint.
type authServer struct {
	*httptest.Server
	deviceCodeCalls int32
	tokenCalls      int32
	refreshCalls    int32
	machineCalls    int32
	failRefresh     bool
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	s := &authServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/device/code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.deviceCodeCalls, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"device_code":               "dev-1",
			"user_code":                 "AAAA-BBBB",
			"verification_uri_complete": "https://auth.example/activate?user_code=AAAA-BBBB",
			"expires_in":                900,
			"interval":                  0,
		})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			atomic.AddInt32(&s.refreshCalls, 1)
			if s.failRefresh {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid_grant"})
				return
			}
		case "client_credentials":
			atomic.AddInt32(&s.machineCalls, 1)
		}
		tokenSuccess(w)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestAuthenticator(t *testing.T, server *authServer, credsPath string, extra ...Option) *Authenticator {
	t.Helper()
	prev := pollTick
	pollTick = time.Millisecond
	t.Cleanup(func() { pollTick = prev })
	opts := []Option{
		WithProvider(NewProvider(server.URL, "test-client")),
		WithCredentialsPath(credsPath),
		WithOutput(io.Discard),
	}
	a := NewAuthenticator(append(opts, extra...)...)
	a.openBrowser = nil
	return a
}

func persistCredential(t *testing.T, path string, c *credentials.Credential) {
	t.Helper()
	require.NoError(t, credentials.NewFileStore(path).Save(c))
}

func TestAuthenticateReusesValidPersistedRecord(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")
	persistCredential(t, path, &credentials.Credential{
		AccessToken:  "persisted-access",
		RefreshToken: "persisted-refresh",
		Expiry:       time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond),
	})

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "persisted-access", cred.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&server.tokenCalls), "no network call expected")
	assert.Zero(t, atomic.LoadInt32(&server.deviceCodeCalls))
}

func TestAuthenticateRefreshesExpiringRecord(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")
	persistCredential(t, path, &credentials.Credential{
		AccessToken:  "stale-access",
		RefreshToken: "persisted-refresh",
		Expiry:       time.Now().UTC().Add(10 * time.Minute), // inside the skew
	})

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.refreshCalls))
	assert.Zero(t, atomic.LoadInt32(&server.deviceCodeCalls))

	// The refreshed credential was persisted for the next run.
	saved, err := credentials.NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "new-access", saved.AccessToken)
}

func TestAuthenticateFallsBackWhenRefreshFails(t *testing.T) {
	server := newAuthServer(t)
	server.failRefresh = true
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")
	persistCredential(t, path, &credentials.Credential{
		AccessToken:  "stale-access",
		RefreshToken: "broken-refresh",
		Expiry:       time.Now().UTC().Add(-time.Hour),
	})

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	// One refresh attempt, then the interactive flow.
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.refreshCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.deviceCodeCalls))
	assert.Equal(t, "new-access", cred.AccessToken)
}

func TestAuthenticateTreatsMalformedRecordAsAbsent(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")
	require.NoError(t, os.WriteFile(path, []byte("version 1\nonly\nthree lines\n"), 0600))

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt32(&server.refreshCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.deviceCodeCalls))
	assert.Equal(t, "new-access", cred.AccessToken)
}

func TestAuthenticateDeviceFlowPersists(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.AccessToken)

	saved, err := credentials.NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "new-access", saved.AccessToken)
	assert.Equal(t, "new-refresh", saved.RefreshToken)
}

func TestAuthenticateRespectsPersistDisabled(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")

	a := newTestAuthenticator(t, server, path, WithPersist(false))
	_, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.False(t, credentials.NewFileStore(path).Exists())
}

func TestAuthenticateMachineFlow(t *testing.T) {
	server := newAuthServer(t)
	t.Setenv(EnvClientID, "machine-id")
	t.Setenv(EnvClientSecret, "machine-secret")
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")

	a := newTestAuthenticator(t, server, path)
	cred, err := a.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.machineCalls))
	assert.Zero(t, atomic.LoadInt32(&server.deviceCodeCalls))
	// Machine tokens are never persisted.
	assert.False(t, credentials.NewFileStore(path).Exists())
}

func TestAuthenticateMachineFlowMissingID(t *testing.T) {
	server := newAuthServer(t)
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "machine-secret")

	a := newTestAuthenticator(t, server, filepath.Join(t.TempDir(), "creds"))
	_, err := a.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrMissingClientCredentials)
}

func TestAuthenticateIsIdempotent(t *testing.T) {
	server := newAuthServer(t)
	path := filepath.Join(t.TempDir(), ".rfcx_credentials")

	a := newTestAuthenticator(t, server, path)
	first, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	callsAfterFirst := atomic.LoadInt32(&server.tokenCalls)

	second, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, callsAfterFirst, atomic.LoadInt32(&server.tokenCalls))
}

func TestAuthenticateDeviceCodeRequestFails(t *testing.T) {
	// Unreachable authorization server: the whole authentication fails
	// with a user-facing error.
	a := NewAuthenticator(
		WithProvider(NewProvider("http://127.0.0.1:0", "test-client")),
		WithCredentialsPath(filepath.Join(t.TempDir(), "creds")),
		WithOutput(io.Discard),
	)
	a.openBrowser = nil

	_, err := a.Authenticate(context.Background())
	var ae *AuthenticationError
	assert.ErrorAs(t, err, &ae)
}
