package auth

import (
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// DeviceAuthorization is one device-code attempt issued by the authorization server.
// It is created by DeviceClient.RequestDeviceCode and consumed by PollingEngine.Poll.
type DeviceAuthorization struct {
	// DeviceCode is the server secret used while polling. Never log it in full.
	DeviceCode string
	// UserCode is shown to the user and typed into the verification page
	UserCode string
	// VerificationURI is the page the user opens to approve the request
	VerificationURI string
	// VerificationURIComplete optionally embeds the user code in the URI
	VerificationURIComplete string
	// ExpiresAt is the absolute deadline derived from expires_in at receipt time
	ExpiresAt time.Time
	// Interval is the minimum spacing between polls. It only ever grows.
	Interval time.Duration
	// AttemptID correlates log lines for this attempt instead of the device code
	AttemptID string
}

// BrowseURL returns the best URL to open for the user
func (d *DeviceAuthorization) BrowseURL() string {
	if d.VerificationURIComplete != "" {
		return d.VerificationURIComplete
	}
	return d.VerificationURI
}

// SlowDown applies the permanent slow_down penalty and returns the new interval
func (d *DeviceAuthorization) SlowDown() time.Duration {
	d.Interval += SlowDownPenalty
	return d.Interval
}

// Expired reports whether the attempt may no longer be polled at instant now
func (d *DeviceAuthorization) Expired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}

// OutcomeKind tags a PollOutcome
type OutcomeKind int

const (
	OutcomeAccessToken OutcomeKind = iota + 1
	OutcomePending
	OutcomeSlowDown
	OutcomeExpired
	OutcomeDenied
	OutcomeOtherError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccessToken:
		return "access_token"
	case OutcomePending:
		return "pending"
	case OutcomeSlowDown:
		return "slow_down"
	case OutcomeExpired:
		return "expired"
	case OutcomeDenied:
		return "denied"
	case OutcomeOtherError:
		return "error"
	default:
		return "unknown"
	}
}

// PollOutcome is the interpretation of a single 200 response from the token endpoint
type PollOutcome struct {
	Kind OutcomeKind
	// Token is set for OutcomeAccessToken
	Token string
	// Code and Description carry the provider error for the error kinds
	Code        string
	Description string
}

// Status describes what is currently cached
type Status struct {
	LoggedIn bool
	Identity string
	Backend  string
	Error    error
}

// Config carries everything the Manager needs that used to be baked-in constants
type Config struct {
	// ClientID is the OAuth application client id
	ClientID string
	// Scope is the space separated scope list requested with the device code
	Scope string
	// Endpoint provides DeviceAuthURL and TokenURL
	Endpoint oauth2.Endpoint
	// UserInfoURL is the profile endpoint used to resolve the storage identity
	UserInfoURL string
	// Force skips the cached token and always runs the device flow
	Force bool
	// ValidateCached checks a cached token against UserInfoURL before reuse
	ValidateCached bool
}

const (
	// DefaultClientID is the public client id of the ghdevice OAuth app
	DefaultClientID = "Iv1.d2cfa8999c68b819"
	// DefaultScope grants read access to private repositories
	DefaultScope = "repo"
	// DefaultUserInfoURL is the GitHub profile endpoint
	DefaultUserInfoURL = "https://api.github.com/user"
	// GrantTypeDeviceCode is the RFC 8628 grant type identifier
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
	// DefaultInterval applies when the server omits interval
	DefaultInterval = 5 * time.Second
	// SlowDownPenalty is added to the interval on every slow_down response
	SlowDownPenalty = 5 * time.Second
	// maxServerSeconds bounds expires_in and interval from the server
	maxServerSeconds = 24 * 60 * 60
)

// DefaultConfig returns a Config for github.com
func DefaultConfig() Config {
	return Config{
		ClientID:    DefaultClientID,
		Scope:       DefaultScope,
		Endpoint:    github.Endpoint,
		UserInfoURL: DefaultUserInfoURL,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ClientID == "" {
		c.ClientID = def.ClientID
	}
	if c.Scope == "" {
		c.Scope = def.Scope
	}
	if c.Endpoint.DeviceAuthURL == "" {
		c.Endpoint.DeviceAuthURL = def.Endpoint.DeviceAuthURL
	}
	if c.Endpoint.TokenURL == "" {
		c.Endpoint.TokenURL = def.Endpoint.TokenURL
	}
	if c.UserInfoURL == "" {
		c.UserInfoURL = def.UserInfoURL
	}
	return c
}

// redact keeps enough of a secret to correlate support requests
func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
