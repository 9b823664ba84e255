package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// UserEndpointResolver resolves identities through a bearer-authenticated profile endpoint
type UserEndpointResolver struct {
	httpClient HTTPClient
	url        string
}

// NewUserEndpointResolver creates a resolver for the given profile endpoint
func NewUserEndpointResolver(httpClient HTTPClient, url string) *UserEndpointResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if url == "" {
		url = DefaultUserInfoURL
	}
	return &UserEndpointResolver{httpClient: httpClient, url: url}
}

type userProfile struct {
	Login             string `json:"login"`
	PreferredUsername string `json:"preferred_username"`
	Username          string `json:"username"`
	Email             string `json:"email"`
}

// ResolveIdentity implements IdentityResolver.
// A 401 response yields ErrUnauthorized so callers can tell a stale token from an outage.
func (r *UserEndpointResolver) ResolveIdentity(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile request failed (status %d)", resp.StatusCode)
	}

	var profile userProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to parse profile: %w", err)
	}

	for _, v := range []string{profile.Login, profile.PreferredUsername, profile.Username, profile.Email} {
		if v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("profile response has no login field")
}

// ChainResolver tries each resolver in order and returns the first identity found.
// ErrUnauthorized from any member stops the chain.
type ChainResolver struct {
	Resolvers []IdentityResolver
	Logger    *zap.Logger
}

// ResolveIdentity implements IdentityResolver
func (c *ChainResolver) ResolveIdentity(ctx context.Context, token string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, r := range c.Resolvers {
		id, err := r.ResolveIdentity(ctx, token)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return "", err
		}
		logger.Debug("identity resolver failed", zap.String("resolver", fmt.Sprintf("%T", r)), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no identity resolvers configured")
	}
	return "", errors.Join(errs...)
}
