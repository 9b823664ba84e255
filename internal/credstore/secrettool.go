package credstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const secretToolBinary = "secret-tool"

// CommandRunner runs an external command with stdin and returns its stdout
type CommandRunner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

// SecretToolBackend stores secrets through libsecret's secret-tool helper.
// It is used on Linux hosts where the keyring library cannot reach the Secret Service directly.
type SecretToolBackend struct {
	run CommandRunner
}

// NewSecretToolBackend creates a backend that shells out through run.
// A nil run executes the real secret-tool binary.
func NewSecretToolBackend(run CommandRunner) *SecretToolBackend {
	if run == nil {
		run = execRunner
	}
	return &SecretToolBackend{run: run}
}

// Name implements Backend
func (b *SecretToolBackend) Name() string {
	return BackendSecretTool
}

// Available reports whether secret-tool is on PATH
func (b *SecretToolBackend) Available() bool {
	_, err := exec.LookPath(secretToolBinary)
	return err == nil
}

// Read implements Backend. secret-tool exits 1 with no output when nothing matches.
func (b *SecretToolBackend) Read(ctx context.Context, service, identity string) (string, error) {
	out, err := b.run(ctx, "", secretToolBinary, "lookup", "service", service, "account", identity)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(bytes.TrimSpace(out)) == 0 {
			return "", ErrNotFound
		}
		return "", unavailable(fmt.Errorf("secret-tool lookup: %w", err))
	}
	secret := strings.TrimRight(string(out), "\r\n")
	if secret == "" {
		return "", ErrNotFound
	}
	return secret, nil
}

// Write implements Backend. The secret is passed on stdin, never on the command line.
func (b *SecretToolBackend) Write(ctx context.Context, service, identity, secret string) error {
	label := fmt.Sprintf("%s token for %s", service, identity)
	if _, err := b.run(ctx, secret, secretToolBinary, "store", "--label="+label, "service", service, "account", identity); err != nil {
		return unavailable(fmt.Errorf("secret-tool store: %w", err))
	}
	return nil
}

// Delete implements Backend
func (b *SecretToolBackend) Delete(ctx context.Context, service, identity string) error {
	if _, err := b.run(ctx, "", secretToolBinary, "clear", "service", service, "account", identity); err != nil {
		return unavailable(fmt.Errorf("secret-tool clear: %w", err))
	}
	return nil
}

func execRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - fixed binary, arguments are not shell-interpreted
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}
