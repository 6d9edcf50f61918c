package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/logger"
)

// HTTPVerifier implements Verifier against a remote identity service.
type HTTPVerifier struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *logger.Logger
}

var _ Verifier = (*HTTPVerifier)(nil)

// NewHTTPVerifier constructs a new HTTP-backed verifier.
func NewHTTPVerifier(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) (*HTTPVerifier, error) {
	if log == nil {
		log = logger.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse authn url: %w", err)
	}
	return &HTTPVerifier{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: log.With("component", "authn"),
	}, nil
}

// Verify posts the credentials to the remote service.
func (c *HTTPVerifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/verify"})

	body, err := json.Marshal(verifyRequest{Email: email, Password: password})
	if err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return Identity{}, fmt.Errorf("decode authn response: %w", err)
		}
		return convertToIdentity(email, payload)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return Identity{}, ErrInvalidCredentials
	default:
		c.logger.Warn("unexpected authn status", "status", resp.StatusCode, "email", email)
		return Identity{}, fmt.Errorf("authn: upstream returned %d", resp.StatusCode)
	}
}

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid *bool   `json:"valid"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// convertToIdentity trusts the remote verdict but never lets the remote side
// swap the email being authenticated.
func convertToIdentity(requested string, payload verifyResponse) (Identity, error) {
	if payload.Valid == nil || !*payload.Valid {
		return Identity{}, ErrInvalidCredentials
	}
	if payload.Email != nil && *payload.Email != "" && !strings.EqualFold(*payload.Email, requested) {
		return Identity{}, ErrInvalidCredentials
	}

	identity := Identity{Email: requested, Role: domain.RoleUser}
	if payload.Role != nil {
		if role, err := domain.ParseRole(*payload.Role); err == nil {
			identity.Role = role
		}
	}
	return identity, nil
}
