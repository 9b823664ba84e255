package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/fastertools/ghdevice/internal/credstore"
)

// Manager obtains access tokens: from the credential store when one is cached,
// otherwise by running the device authorization flow and persisting the result.
type Manager struct {
	store    CredentialStore
	device   *DeviceClient
	engine   *PollingEngine
	notifier  Notifier
	resolver  IdentityResolver
	validator IdentityResolver
	config    Config
	logger   *zap.Logger
}

// Options wires the Manager's collaborators. Nil fields get production defaults.
type Options struct {
	HTTPClient HTTPClient
	Clock      clock.Clock
	Notifier   Notifier
	Resolver   IdentityResolver
	Logger     *zap.Logger
}

// NewManager creates a new authentication manager
func NewManager(store CredentialStore, config Config, opts Options) *Manager {
	config = config.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	userEndpoint := NewUserEndpointResolver(httpClient, config.UserInfoURL)
	resolver := opts.Resolver
	if resolver == nil {
		resolver = &ChainResolver{
			Resolvers: []IdentityResolver{JWTResolver{}, userEndpoint},
			Logger:    logger,
		}
	}

	return &Manager{
		store:     store,
		device:    NewDeviceClient(httpClient, clk, config.Endpoint.DeviceAuthURL, logger),
		engine:    NewPollingEngine(httpClient, clk, config.Endpoint.TokenURL, config.ClientID, logger),
		notifier:  notifier,
		resolver:  resolver,
		validator: userEndpoint,
		config:    config,
		logger:    logger,
	}
}

// ObtainToken returns a valid access token.
//
// A cached token is returned without any network activity unless Config.Force or
// Config.ValidateCached says otherwise. If the device flow succeeds but the token
// cannot be persisted, the token is returned together with an ErrStoreUnavailable
// error so the caller can still use it.
func (m *Manager) ObtainToken(ctx context.Context) (string, error) {
	if !m.config.Force {
		if token, ok := m.cachedToken(ctx); ok {
			return token, nil
		}
	}

	token, err := m.runDeviceFlow(ctx)
	if err != nil {
		return "", err
	}

	identity, err := m.resolver.ResolveIdentity(ctx, token)
	if err != nil {
		m.logger.Warn("could not resolve identity for new token; skipping credential store write", zap.Error(err))
		return token, nil
	}

	if err := m.store.Put(ctx, credstore.Credential{Identity: identity, Secret: token}); err != nil {
		m.logger.Error("failed to persist token", zap.String("identity", identity), zap.Error(err))
		return token, &AuthError{Kind: KindStoreUnavailable, Phase: PhaseStorage, Err: err}
	}

	m.logger.Info("token stored", zap.String("identity", identity), zap.String("backend", m.store.BackendName()))
	return token, nil
}

// cachedToken looks up the token for the current user. Store failures count as a miss.
func (m *Manager) cachedToken(ctx context.Context) (string, bool) {
	cred, err := m.store.Get(ctx, "")
	if err != nil {
		m.logger.Warn("credential store read failed; falling back to device flow", zap.Error(err))
		return "", false
	}
	if cred == nil {
		return "", false
	}

	// Validation always asks the server; claims inside a JWT prove nothing about revocation.
	if m.config.ValidateCached {
		_, err := m.validator.ResolveIdentity(ctx, cred.Secret)
		if errors.Is(err, ErrUnauthorized) {
			m.logger.Info("cached token was rejected; starting a new device flow", zap.String("identity", cred.Identity))
			return "", false
		}
		if err != nil {
			m.logger.Warn("could not validate cached token; using it anyway", zap.Error(err))
		}
	}

	m.logger.Debug("using cached token", zap.String("identity", cred.Identity))
	return cred.Secret, true
}

func (m *Manager) runDeviceFlow(ctx context.Context) (string, error) {
	da, err := m.device.RequestDeviceCode(ctx, m.config.ClientID, m.config.Scope)
	if err != nil {
		return "", err
	}

	if err := m.notifier.Notify(ctx, da); err != nil {
		return "", err
	}

	token, err := m.engine.Poll(ctx, da)
	m.notifier.Finish(err)
	return token, err
}

// Logout removes the stored token of the current user
func (m *Manager) Logout(ctx context.Context) error {
	identity := m.store.CurrentIdentity()
	if identity == "" {
		return ErrNotLoggedIn
	}
	if err := m.store.Delete(ctx, identity); err != nil {
		return &AuthError{Kind: KindStoreUnavailable, Phase: PhaseStorage, Err: err}
	}
	return nil
}

// Status reports whether a token is cached for the current user
func (m *Manager) Status(ctx context.Context) *Status {
	status := &Status{
		Identity: m.store.CurrentIdentity(),
		Backend:  m.store.BackendName(),
	}
	cred, err := m.store.Get(ctx, "")
	if err != nil {
		status.Error = err
		return status
	}
	status.LoggedIn = cred != nil
	return status
}

// ErrNotLoggedIn is returned by Logout when nothing is stored
var ErrNotLoggedIn = errors.New("not logged in")

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *DeviceAuthorization) error { return nil }
func (nopNotifier) Finish(error)                                      {}
