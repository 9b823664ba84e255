// Package config manages user-level configuration for ghdevice
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the user's ghdevice configuration file
type Config struct {
	// Users records, per credential service name, who logged in last
	Users map[string]UserInfo `yaml:"users,omitempty"`

	// Version of the config schema
	Version string `yaml:"version"`

	path   string
	mu     sync.RWMutex
	saveMu sync.Mutex
}

// UserInfo stores information about an authenticated user
type UserInfo struct {
	Username  string `yaml:"username"`
	UpdatedAt string `yaml:"updated_at,omitempty"`
}

// Path returns the default path to the config file
func Path() (string, error) {
	var configDir string

	// Check XDG_CONFIG_HOME first for testing and Linux compatibility
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		configDir = xdgConfig
	} else {
		// Fall back to os.UserConfigDir() for platform-specific defaults
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get config directory")
		}
	}

	return filepath.Join(configDir, "ghdevice", "config.yml"), nil
}

// Load loads the configuration from the default path
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields a default config.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is controlled via Path() or the caller
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	if cfg.Users == nil {
		cfg.Users = make(map[string]UserInfo)
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	cfg.path = path
	return cfg, nil
}

// defaultConfig returns a default configuration
func defaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Users:   make(map[string]UserInfo),
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	data, err := yaml.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Ensure directory exists
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	// Write atomically by writing to a unique temp file then renaming
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp config")
	}
	tempPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to set config mode")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to write config")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to write config")
	}

	if err := os.Rename(tempPath, c.path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to save config")
	}

	return nil
}

// CurrentUser returns the identity last stored for service
func (c *Config) CurrentUser(service string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Users[service].Username
}

// SetCurrentUser records identity as the current user of service and saves
func (c *Config) SetCurrentUser(service, identity string) error {
	c.mu.Lock()
	if c.Users == nil {
		c.Users = make(map[string]UserInfo)
	}
	c.Users[service] = UserInfo{
		Username:  identity,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	c.mu.Unlock()

	return c.Save()
}

// ClearCurrentUser forgets the current user of service and saves
func (c *Config) ClearCurrentUser(service string) error {
	c.mu.Lock()
	delete(c.Users, service)
	c.mu.Unlock()

	return c.Save()
}

// UserInfoFor returns the full record for service
func (c *Config) UserInfoFor(service string) (UserInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.Users[service]
	return info, ok
}
