// Package credstore persists access tokens in a pluggable secret backend.
//
// The backend is chosen once, when the Store is opened. Every backend is keyed by
// (service, identity) and holds at most one secret per key; writes overwrite.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Credential is a secret filed under an account name
type Credential struct {
	Identity string
	Secret   string
}

// Backend is the capability every secret storage implementation provides.
// Read returns ErrNotFound when nothing is stored for the key.
type Backend interface {
	Name() string
	Read(ctx context.Context, service, identity string) (string, error)
	Write(ctx context.Context, service, identity, secret string) error
	Delete(ctx context.Context, service, identity string) error
}

// UserRecord persists which identity was stored last for a service
type UserRecord interface {
	CurrentUser(service string) string
	SetCurrentUser(service, identity string) error
	ClearCurrentUser(service string) error
}

var (
	// ErrNotFound is returned by backends on a miss
	ErrNotFound = errors.New("secret not found")
	// ErrBackendUnavailable marks transport and permission failures of a backend
	ErrBackendUnavailable = errors.New("credential backend unavailable")
)

// StoreError describes a failed backend operation
type StoreError struct {
	Op       string // "read", "write", "delete", "record"
	Backend  string
	Identity string
	Err      error
}

func (e *StoreError) Error() string {
	msg := e.Op + " credentials"
	if e.Identity != "" {
		msg += " for " + e.Identity
	}
	if e.Backend != "" {
		msg += " in " + e.Backend
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// unavailable wraps err so that it matches ErrBackendUnavailable
func unavailable(err error) error {
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// Store is the credential store used by the auth manager
type Store struct {
	backend Backend
	service string
	users   UserRecord
	logger  *zap.Logger
}

// New creates a Store over an already selected backend.
// users may be nil, in which case Get requires an explicit identity.
func New(backend Backend, service string, users UserRecord, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		service: service,
		users:   users,
		logger:  logger,
	}
}

// BackendName returns the name of the selected backend
func (s *Store) BackendName() string {
	return s.backend.Name()
}

// Service returns the service name secrets are filed under
func (s *Store) Service() string {
	return s.service
}

// CurrentIdentity returns the identity recorded by the last successful Put
func (s *Store) CurrentIdentity() string {
	if s.users == nil {
		return ""
	}
	return s.users.CurrentUser(s.service)
}

// Get returns the credential stored for identity, or nil when there is none.
// An empty identity means the current user.
func (s *Store) Get(ctx context.Context, identity string) (*Credential, error) {
	if identity == "" {
		identity = s.CurrentIdentity()
	}
	if identity == "" {
		return nil, nil
	}

	secret, err := s.backend.Read(ctx, s.service, identity)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "read", Backend: s.backend.Name(), Identity: identity, Err: unavailable(err)}
	}
	return &Credential{Identity: identity, Secret: secret}, nil
}

// Put stores cred, replacing any secret already filed under the same identity,
// and records cred.Identity as the current user.
func (s *Store) Put(ctx context.Context, cred Credential) error {
	if strings.TrimSpace(cred.Identity) == "" {
		return &StoreError{Op: "write", Backend: s.backend.Name(), Err: errors.New("identity is required")}
	}
	if cred.Secret == "" {
		return &StoreError{Op: "write", Backend: s.backend.Name(), Identity: cred.Identity, Err: errors.New("secret is empty")}
	}

	if err := s.backend.Write(ctx, s.service, cred.Identity, cred.Secret); err != nil {
		return &StoreError{Op: "write", Backend: s.backend.Name(), Identity: cred.Identity, Err: unavailable(err)}
	}

	if s.users != nil {
		if err := s.users.SetCurrentUser(s.service, cred.Identity); err != nil {
			return &StoreError{Op: "record", Backend: s.backend.Name(), Identity: cred.Identity, Err: err}
		}
	}
	s.logger.Debug("stored credential", zap.String("service", s.service), zap.String("identity", cred.Identity))
	return nil
}

// Delete removes the secret for identity and clears the current user if it matches.
// Deleting a missing secret is not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if identity == "" {
		identity = s.CurrentIdentity()
	}
	if identity == "" {
		return nil
	}

	err := s.backend.Delete(ctx, s.service, identity)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return &StoreError{Op: "delete", Backend: s.backend.Name(), Identity: identity, Err: unavailable(err)}
	}

	if s.users != nil && s.users.CurrentUser(s.service) == identity {
		if err := s.users.ClearCurrentUser(s.service); err != nil {
			return &StoreError{Op: "record", Backend: s.backend.Name(), Identity: identity, Err: err}
		}
	}
	return nil
}
