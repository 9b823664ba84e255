package credstore

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// probeIdentity is looked up to check that the keyring answers at all
const probeIdentity = "__ghdevice_probe__"

// KeyringBackend stores secrets in the OS keyring
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
type KeyringBackend struct{}

// NewKeyringBackend creates a new keyring-based backend
func NewKeyringBackend() *KeyringBackend {
	// The zalando keyring library handles platform selection automatically
	return &KeyringBackend{}
}

// Name implements Backend
func (b *KeyringBackend) Name() string {
	return BackendKeyring
}

// Probe reports whether the keyring can be reached. A miss counts as reachable.
func (b *KeyringBackend) Probe(ctx context.Context, service string) error {
	_, err := b.Read(ctx, service, probeIdentity)
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Read implements Backend
func (b *KeyringBackend) Read(_ context.Context, service, identity string) (string, error) {
	secret, err := keyring.Get(service, identity)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", unavailable(err)
	}
	return secret, nil
}

// Write implements Backend
func (b *KeyringBackend) Write(_ context.Context, service, identity, secret string) error {
	if err := keyring.Set(service, identity, secret); err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete implements Backend
func (b *KeyringBackend) Delete(_ context.Context, service, identity string) error {
	err := keyring.Delete(service, identity)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	return nil
}
