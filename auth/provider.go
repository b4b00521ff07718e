// Package auth talks to the RFCx authorization server and resolves one
// valid credential per process: machine (client-credentials) exchange,
// persisted-record reuse, refresh, or the interactive device-code flow.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rfcx/rfcx-sdk-go/credentials"
)

const (
	// DefaultAuthURL is the authorization server base, overridable via
	// RFCX_AUTH_URL.
	DefaultAuthURL = "https://auth.rfcx.org"
	// DefaultClientID is the public CLI/SDK client registered with the
	// authorization server, overridable via RFCX_CLIENT_ID.
	DefaultClientID = "LS4dJlP8J2iOBr2snzm6N8I5u7FLSUGd"

	deviceScope = "openid email profile offline_access"
	audience    = "https://rfcx.org"

	tokenRequestTimeout = 30 * time.Second
)

// slowDownStep is how much the poll interval grows on a slow_down response,
// per RFC 8628. pollTick is the unit the server-specified interval is
// expressed in; both are variables so tests can shrink the waits.
var (
	slowDownStep = 5 * time.Second
	pollTick     = time.Second
)

// Provider performs the OAuth exchanges against the authorization server's
// device-code and token endpoints.
type Provider struct {
	AuthURL    string
	ClientID   string
	HTTPClient *http.Client
}

// NewProvider creates a Provider with the default endpoints and timeouts.
// Empty arguments fall back to the package defaults.
func NewProvider(authURL, clientID string) *Provider {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	return &Provider{
		AuthURL:    authURL,
		ClientID:   clientID,
		HTTPClient: &http.Client{Timeout: tokenRequestTimeout},
	}
}

// DeviceCode is the authorization server's response to a device-code
// request.
type DeviceCode struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// RequestDeviceCode starts the device flow by obtaining a device and user
// code pair for the human to authorize in a browser.
func (p *Provider) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {p.ClientID},
		"scope":     {deviceScope},
		"audience":  {audience},
	}
	body, status, err := p.postForm(ctx, p.AuthURL+"/oauth/device/code", form)
	if err != nil {
		return nil, fmt.Errorf("auth: device code request failed: %w", err)
	}
	if status != http.StatusOK {
		return nil, flowErrorFromBody(status, body)
	}
	var dc DeviceCode
	if err := json.Unmarshal(body, &dc); err != nil {
		return nil, fmt.Errorf("auth: failed to parse device code response: %w", err)
	}
	if dc.DeviceCode == "" {
		return nil, &FlowError{Status: status, Description: "device code missing from response"}
	}
	if dc.Interval <= 0 {
		dc.Interval = 5
	}
	return &dc, nil
}

// PollDeviceToken polls the token endpoint at the server-specified interval
// until the human approves or a terminal error arrives. It sleeps first, so
// the human has a chance to act before the initial poll, and honors ctx
// cancellation between polls.
func (p *Provider) PollDeviceToken(ctx context.Context, dc *DeviceCode) (*credentials.Credential, error) {
	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {dc.DeviceCode},
		"client_id":   {p.ClientID},
	}
	interval := time.Duration(dc.Interval) * pollTick
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		cred, err := p.requestToken(ctx, form)
		if err == nil {
			return cred, nil
		}
		var fe *FlowError
		if !errors.As(err, &fe) {
			return nil, err
		}
		switch fe.Code {
		case errAuthorizationPending:
			// keep polling
		case errSlowDown:
			interval += slowDownStep
		default:
			return nil, fe
		}
	}
}

// ClientCredentials performs the machine-to-machine exchange using a client
// id/secret pair. Machine tokens carry no refresh token.
func (p *Provider) ClientCredentials(ctx context.Context, clientID, clientSecret string) (*credentials.Credential, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingClientCredentials
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"audience":      {audience},
	}
	return p.requestToken(ctx, form)
}

// Refresh exchanges a refresh token for a new access token. The prior
// refresh token is preserved when the server does not rotate it.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*credentials.Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {p.ClientID},
		"refresh_token": {refreshToken},
	}
	cred, err := p.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// tokenResponse is the token endpoint's success shape. Error responses
// carry "error" and "error_description" instead.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// requestToken is the shared low-level exchange: POST the form, require a
// 2xx with an access_token, and surface the server's error fields when not.
func (p *Provider) requestToken(ctx context.Context, form url.Values) (*credentials.Credential, error) {
	body, status, err := p.postForm(ctx, p.AuthURL+"/oauth/token", form)
	if err != nil {
		return nil, fmt.Errorf("auth: token request failed: %w", err)
	}

	var tr tokenResponse
	// Ignore the unmarshal error here: a non-JSON body is covered by the
	// status/access_token checks below.
	_ = json.Unmarshal(body, &tr)

	if status < 200 || status >= 300 || tr.AccessToken == "" {
		return nil, flowErrorFromBody(status, body)
	}

	return &credentials.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		Expiry:       time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func (p *Provider) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func flowErrorFromBody(status int, body []byte) *FlowError {
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &e)
	return &FlowError{Status: status, Code: e.Error, Description: e.ErrorDescription}
}
