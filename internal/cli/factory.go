package cli

import (
	"context"
	"fmt"

	"github.com/fastertools/ghdevice/internal/auth"
	"github.com/fastertools/ghdevice/internal/config"
	"github.com/fastertools/ghdevice/internal/credstore"
)

// openManager wires the user config, the credential store and the auth manager
// from the loaded settings.
func (o *rootOptions) openManager(ctx context.Context, force bool, notifier auth.Notifier) (*auth.Manager, *credstore.Store, error) {
	userConfig, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user config: %w", err)
	}

	storeOpts := o.settings.StoreOptions()
	storeOpts.Users = userConfig
	storeOpts.Logger = o.logger.Named("credstore")

	store, err := credstore.Open(ctx, storeOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	Debug("Credential backend: %s (service %s)", store.BackendName(), store.Service())

	authConfig := o.settings.AuthConfig()
	authConfig.Force = force

	manager := auth.NewManager(store, authConfig, auth.Options{
		Notifier: notifier,
		Logger:   o.logger.Named("auth"),
	})
	return manager, store, nil
}
