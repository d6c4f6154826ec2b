// Package auth exchanges operator credentials for a bearer token and
// resolves the tenant's API base endpoint.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer hosts for the two CXone environments.
const (
	IssuerProduction = "cxone.niceincontact.com"
	IssuerFedRAMP    = "cxone-gov.niceincontact.com"
)

// apiServicePath is appended to the discovered tenant endpoint. The
// console is pinned to v31.0 of the inContact API.
const apiServicePath = "/incontactAPI/services/v31.0"

// Credentials are the four operator-supplied values for the password grant.
type Credentials struct {
	AccessID        string
	AccessKeySecret string
	ClientID        string
	ClientSecret    string
}

// Context is the immutable result of a successful authentication. It is
// shared read-only by every component for the lifetime of the session;
// there is no refresh, re-authentication requires new credentials.
type Context struct {
	Token    string
	BaseURL  string
	IssuedAt time.Time
}

// ErrorKind classifies authentication failures.
type ErrorKind int

const (
	KindInvalidCredentials ErrorKind = iota
	KindDiscoveryFailed
	KindNetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindDiscoveryFailed:
		return "discovery failed"
	case KindNetworkError:
		return "network error"
	}
	return "unknown"
}

// Error is a typed authentication failure. Status is the HTTP status of
// the failing call when one was received.
type Error struct {
	Kind   ErrorKind
	Status int
	cause  error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth: %s (status %d)", e.Kind, e.Status)
	}
	if e.cause != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("auth: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Provider performs the token exchange and tenant discovery.
type Provider struct {
	issuer     string
	httpClient *http.Client
}

// NewProvider creates a Provider against the given issuer host.
func NewProvider(issuer string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{issuer: strings.TrimRight(issuer, "/"), httpClient: httpClient}
}

// issuerURL returns the issuer base URL. Bare hosts get https; a full URL
// (as used by tests) is taken as-is.
func (p *Provider) issuerURL() string {
	if strings.Contains(p.issuer, "://") {
		return p.issuer
	}
	return "https://" + p.issuer
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type discoveryResponse struct {
	APIEndpoint string `json:"api_endpoint"`
}

// Authenticate performs one Basic-authenticated password-grant POST and
// one discovery GET, returning the session Context.
func (p *Provider) Authenticate(ctx context.Context, creds Credentials) (*Context, error) {
	token, err := p.exchangeToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	tenantID, err := tenantIDFromToken(token)
	if err != nil {
		return nil, &Error{Kind: KindDiscoveryFailed, cause: err}
	}

	apiEndpoint, err := p.discoverEndpoint(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &Context{
		Token:    token,
		BaseURL:  strings.TrimRight(apiEndpoint, "/") + apiServicePath,
		IssuedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) exchangeToken(ctx context.Context, creds Credentials) (string, error) {
	// The client secret is URL-escaped before Basic encoding; the token
	// service expects this exact concatenation.
	pair := creds.ClientID + ":" + url.QueryEscape(creds.ClientSecret)
	basic := base64.StdEncoding.EncodeToString([]byte(pair))

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", creds.AccessID)
	form.Set("password", creds.AccessKeySecret)

	endpoint := p.issuerURL() + "/auth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: KindNetworkError, cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetworkError, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindInvalidCredentials, Status: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &Error{Kind: KindInvalidCredentials, cause: fmt.Errorf("decoding token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &Error{Kind: KindInvalidCredentials, cause: fmt.Errorf("token response missing access_token")}
	}
	return tr.AccessToken, nil
}

// tenantIDFromToken extracts the tenantId claim without verifying the
// signature; the token was just issued to us over TLS and is only used
// to locate the tenant's API endpoint.
func tenantIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parsing access token: %w", err)
	}
	tenantID, ok := claims["tenantId"].(string)
	if !ok || tenantID == "" {
		return "", fmt.Errorf("access token missing tenantId claim")
	}
	return tenantID, nil
}

func (p *Provider) discoverEndpoint(ctx context.Context, tenantID string) (string, error) {
	discoveryURL := fmt.Sprintf("%s/.well-known/cxone-configuration?tenantId=%s", p.issuerURL(), url.QueryEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return "", &Error{Kind: KindNetworkError, cause: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindNetworkError, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindDiscoveryFailed, Status: resp.StatusCode}
	}

	var dr discoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", &Error{Kind: KindDiscoveryFailed, cause: fmt.Errorf("decoding discovery response: %w", err)}
	}
	if dr.APIEndpoint == "" {
		return "", &Error{Kind: KindDiscoveryFailed, cause: fmt.Errorf("discovery response missing api_endpoint")}
	}
	return dr.APIEndpoint, nil
}
