package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileBackend keeps secrets in a TOML file readable only by the current user.
// Secrets are not encrypted at rest; it exists for debug profiles and hosts without a keyring.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

type fileContents struct {
	Services map[string]map[string]string `toml:"services"`
}

// NewFileBackend creates a file backend at path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// DefaultFilePath returns the default location of the credentials file
func DefaultFilePath() (string, error) {
	var dataDir string

	// Check XDG_DATA_HOME first for testing and Linux compatibility
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		dataDir = xdgData
	} else {
		var err error
		dataDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to get data directory: %w", err)
		}
	}
	return filepath.Join(dataDir, "ghdevice", "credentials.toml"), nil
}

// Name implements Backend
func (b *FileBackend) Name() string {
	return BackendFile
}

// Path returns the file location
func (b *FileBackend) Path() string {
	return b.path
}

// Read implements Backend
func (b *FileBackend) Read(_ context.Context, service, identity string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	contents, err := b.load()
	if err != nil {
		return "", err
	}
	secret, ok := contents.Services[service][identity]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// Write implements Backend
func (b *FileBackend) Write(_ context.Context, service, identity, secret string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	contents, err := b.load()
	if err != nil {
		return err
	}
	if contents.Services[service] == nil {
		contents.Services[service] = make(map[string]string)
	}
	contents.Services[service][identity] = secret
	return b.save(contents)
}

// Delete implements Backend
func (b *FileBackend) Delete(_ context.Context, service, identity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	contents, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := contents.Services[service][identity]; !ok {
		return ErrNotFound
	}
	delete(contents.Services[service], identity)
	if len(contents.Services[service]) == 0 {
		delete(contents.Services, service)
	}
	return b.save(contents)
}

func (b *FileBackend) load() (*fileContents, error) {
	contents := &fileContents{Services: make(map[string]map[string]string)}

	data, err := os.ReadFile(b.path) // #nosec G304 - path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return contents, nil
		}
		return nil, unavailable(fmt.Errorf("failed to read credentials file: %w", err))
	}
	if err := toml.Unmarshal(data, contents); err != nil {
		return nil, unavailable(fmt.Errorf("failed to parse credentials file %s: %w", b.path, err))
	}
	if contents.Services == nil {
		contents.Services = make(map[string]map[string]string)
	}
	return contents, nil
}

// save writes atomically by writing to a temp file then renaming
func (b *FileBackend) save(contents *fileContents) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return unavailable(fmt.Errorf("failed to create credentials directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.toml")
	if err != nil {
		return unavailable(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		cleanup()
		return unavailable(fmt.Errorf("failed to set credentials file mode: %w", err))
	}
	if err := toml.NewEncoder(tmp).Encode(contents); err != nil {
		_ = tmp.Close()
		cleanup()
		return unavailable(fmt.Errorf("failed to encode credentials: %w", err))
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return unavailable(fmt.Errorf("failed to write credentials: %w", err))
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		cleanup()
		return unavailable(fmt.Errorf("failed to save credentials: %w", err))
	}
	return nil
}
