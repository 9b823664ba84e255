package credstore

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Backend names accepted by Open
const (
	BackendAuto       = "auto"
	BackendKeyring    = "keyring"
	BackendSecretTool = "secret-tool"
	BackendFile       = "file"
	BackendRedis      = "redis"
	BackendMemory     = "memory"
)

// Options selects and configures the backend behind a Store
type Options struct {
	// Backend is one of the Backend* names; empty means auto
	Backend string
	// Service is the name secrets are filed under
	Service string
	// FilePath is the location of the file backend
	FilePath string
	// RedisURL is a redis:// URL for the redis backend
	RedisURL string
	// Users records the current identity; may be nil
	Users  UserRecord
	Logger *zap.Logger
}

// Open resolves the backend named in opts and returns a Store over it.
// In auto mode the OS keyring is probed first, then secret-tool, then the file backend.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Service == "" {
		return nil, fmt.Errorf("service name is required")
	}

	backend, err := selectBackend(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("credential backend selected", zap.String("backend", backend.Name()), zap.String("service", opts.Service))
	return New(backend, opts.Service, opts.Users, logger), nil
}

func selectBackend(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	switch name := strings.ToLower(strings.TrimSpace(opts.Backend)); name {
	case "", BackendAuto:
		return autoBackend(ctx, opts, logger)
	case BackendKeyring:
		return NewKeyringBackend(), nil
	case BackendSecretTool:
		return NewSecretToolBackend(nil), nil
	case BackendFile:
		return newFileBackend(opts.FilePath)
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires a redis URL")
		}
		return NewRedisBackendFromURL(opts.RedisURL)
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", opts.Backend)
	}
}

func autoBackend(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	kr := NewKeyringBackend()
	err := kr.Probe(ctx, opts.Service)
	if err == nil {
		return kr, nil
	}
	logger.Warn("OS keyring unavailable", zap.Error(err))

	if st := NewSecretToolBackend(nil); st.Available() {
		logger.Warn("falling back to secret-tool credential backend")
		return st, nil
	}

	fb, err := newFileBackend(opts.FilePath)
	if err != nil {
		return nil, err
	}
	logger.Warn("falling back to plain-file credential backend; tokens are not encrypted at rest", zap.String("path", fb.Path()))
	return fb, nil
}

func newFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		p, err := DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return NewFileBackend(path), nil
}
