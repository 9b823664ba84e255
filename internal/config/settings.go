package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/fastertools/ghdevice/internal/auth"
	"github.com/fastertools/ghdevice/internal/credstore"
)

// Profiles select the credential service name and default backend
const (
	ProfileProduction = "production"
	ProfileDebug      = "debug"
)

const serviceName = "ghdevice"

// Settings is the runtime configuration of ghdevice, assembled by viper
// from defaults, the settings file, GHDEVICE_* environment variables and flags.
type Settings struct {
	Profile string `mapstructure:"profile"`

	ClientID       string `mapstructure:"client_id"`
	Scope          string `mapstructure:"scope"`
	DeviceCodeURL  string `mapstructure:"device_code_url"`
	TokenURL       string `mapstructure:"token_url"`
	UserInfoURL    string `mapstructure:"user_info_url"`
	ValidateCached bool   `mapstructure:"validate_cached"`

	Store StoreSettings `mapstructure:"store"`
}

// StoreSettings configures the credential backend
type StoreSettings struct {
	Backend  string `mapstructure:"backend"`
	Service  string `mapstructure:"service"`
	FilePath string `mapstructure:"file_path"`
	RedisURL string `mapstructure:"redis_url"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("profile", ProfileProduction)
	v.SetDefault("client_id", auth.DefaultClientID)
	v.SetDefault("scope", auth.DefaultScope)
	v.SetDefault("device_code_url", github.Endpoint.DeviceAuthURL)
	v.SetDefault("token_url", github.Endpoint.TokenURL)
	v.SetDefault("user_info_url", auth.DefaultUserInfoURL)
	v.SetDefault("validate_cached", false)
	v.SetDefault("store.backend", "")
	v.SetDefault("store.service", "")
	v.SetDefault("store.file_path", "")
	v.SetDefault("store.redis_url", "")
}

// LoadSettings decodes and validates the settings held by v
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode settings")
	}
	s.Profile = strings.ToLower(strings.TrimSpace(s.Profile))
	if err := s.Validate(); err != nil {
		return Settings{}, errors.Wrap(err, "settings validation failed")
	}
	return s, nil
}

// Validate checks the settings for missing or inconsistent values
func (s Settings) Validate() error {
	switch s.Profile {
	case ProfileProduction, ProfileDebug:
	default:
		return fmt.Errorf("unknown profile %q (want %q or %q)", s.Profile, ProfileProduction, ProfileDebug)
	}
	if s.ClientID == "" {
		return errors.New("client_id is required")
	}
	if s.DeviceCodeURL == "" || s.TokenURL == "" {
		return errors.New("device_code_url and token_url are required")
	}
	return nil
}

// ServiceName returns the credential service name. Debug and production use
// different names so a debug login never overwrites the real one.
func (s Settings) ServiceName() string {
	if s.Store.Service != "" {
		return s.Store.Service
	}
	if s.Profile == ProfileDebug {
		return serviceName + "-debug"
	}
	return serviceName
}

// BackendName returns the configured credential backend, defaulting per profile
func (s Settings) BackendName() string {
	if s.Store.Backend != "" {
		return s.Store.Backend
	}
	if s.Profile == ProfileDebug {
		return credstore.BackendFile
	}
	return credstore.BackendAuto
}

// AuthConfig converts the settings into the auth manager's configuration
func (s Settings) AuthConfig() auth.Config {
	return auth.Config{
		ClientID: s.ClientID,
		Scope:    s.Scope,
		Endpoint: oauth2.Endpoint{
			AuthURL:       github.Endpoint.AuthURL,
			DeviceAuthURL: s.DeviceCodeURL,
			TokenURL:      s.TokenURL,
		},
		UserInfoURL:    s.UserInfoURL,
		ValidateCached: s.ValidateCached,
	}
}

// StoreOptions converts the settings into credential store options
func (s Settings) StoreOptions() credstore.Options {
	return credstore.Options{
		Backend:  s.BackendName(),
		Service:  s.ServiceName(),
		FilePath: s.Store.FilePath,
		RedisURL: s.Store.RedisURL,
	}
}
