package auth

import (
	"context"
	"net/http"

	"github.com/fastertools/ghdevice/internal/credstore"
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier presents a device authorization to the user.
// Notify is called before polling starts; Finish once polling reaches a terminal state.
type Notifier interface {
	Notify(ctx context.Context, da *DeviceAuthorization) error
	Finish(err error)
}

// IdentityResolver maps an access token to the account name it belongs to
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (string, error)
}

// CredentialStore is the slice of credstore.Store the Manager depends on
type CredentialStore interface {
	Get(ctx context.Context, identity string) (*credstore.Credential, error)
	Put(ctx context.Context, cred credstore.Credential) error
	Delete(ctx context.Context, identity string) error
	CurrentIdentity() string
	BackendName() string
}

var _ CredentialStore = (*credstore.Store)(nil)
