package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/ghdevice/internal/config"
	"github.com/fastertools/ghdevice/internal/credstore"
)

// seedFileStore stores a token the way a previous login would have
func seedFileStore(t *testing.T, identity, secret string) {
	t.Helper()

	users, err := config.Load()
	require.NoError(t, err)
	store, err := credstore.Open(context.Background(), credstore.Options{
		Backend: credstore.BackendFile,
		Service: "ghdevice",
		Users:   users,
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), credstore.Credential{Identity: identity, Secret: secret}))
}

func TestAuthCommand(t *testing.T) {
	cmd := newAuthCmd(&rootOptions{})

	assert.Equal(t, "auth", cmd.Use)
	assert.Equal(t, "Manage authentication", cmd.Short)

	// Check subcommands
	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	assert.True(t, subcommands["login"])
	assert.True(t, subcommands["logout"])
	assert.True(t, subcommands["status"])
}

func TestAuthLoginCommand(t *testing.T) {
	cmd := newAuthLoginCmd(&rootOptions{})

	assert.Equal(t, "login", cmd.Use)
	assert.Equal(t, "Login to GitHub", cmd.Short)

	// Check flags
	assert.NotNil(t, cmd.Flags().Lookup("no-browser"))
	assert.NotNil(t, cmd.Flags().Lookup("force"))
}

func TestAuthStatusCommand(t *testing.T) {
	cmd := newAuthStatusCmd(&rootOptions{})

	assert.Equal(t, "status", cmd.Use)
	flag := cmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
}

func TestAuthStatus_NotLoggedInJSON(t *testing.T) {
	isolateUserDirs(t)

	res := executeCommand(t, "--store", "memory", "auth", "status", "--output", "json")
	require.NoError(t, res.Err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &got))
	assert.Equal(t, false, got["logged_in"])
	assert.Equal(t, "memory", got["backend"])
	assert.Equal(t, "ghdevice", got["service"])
}

func TestAuthStatus_LoggedInTable(t *testing.T) {
	isolateUserDirs(t)
	seedFileStore(t, "octocat", "tok_abc")

	res := executeCommand(t, "--store", "file", "auth", "status")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "identity:")
	assert.Contains(t, res.Stdout, "octocat")
	assert.Contains(t, res.Stdout, "file")
	assert.NotContains(t, res.Stdout, "tok_abc", "status never prints the token")
}

func TestAuthStatus_BadOutputFormat(t *testing.T) {
	isolateUserDirs(t)

	res := executeCommand(t, "--store", "memory", "auth", "status", "--output", "xml")
	assert.Error(t, res.Err)
}

func TestAuthLogout(t *testing.T) {
	isolateUserDirs(t)

	res := executeCommand(t, "--store", "file", "auth", "logout")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stderr, "Not logged in")

	seedFileStore(t, "octocat", "tok_abc")
	res = executeCommand(t, "--store", "file", "auth", "logout")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Successfully logged out")

	users, err := config.Load()
	require.NoError(t, err)
	assert.Empty(t, users.CurrentUser("ghdevice"))
}

func TestAuthLogin_AlreadyLoggedIn(t *testing.T) {
	isolateUserDirs(t)
	seedFileStore(t, "octocat", "tok_abc")

	res := executeCommand(t, "--store", "file", "auth", "login")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Already logged in as")
	assert.Contains(t, res.Stdout, "octocat")
}

func TestDebugProfileUsesSeparateService(t *testing.T) {
	isolateUserDirs(t)
	seedFileStore(t, "octocat", "tok_abc")

	res := executeCommand(t, "--profile", "debug", "auth", "status", "--output", "json")
	require.NoError(t, res.Err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &got))
	assert.Equal(t, "ghdevice-debug", got["service"])
	assert.Equal(t, "file", got["backend"])
	assert.Equal(t, false, got["logged_in"])
}
