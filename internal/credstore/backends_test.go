package credstore

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// testBackend runs the behavior every Backend must share
func testBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Read(ctx, "ghdevice-test", "octocat")
	assert.ErrorIs(t, err, ErrNotFound, "read on empty backend")

	require.NoError(t, b.Write(ctx, "ghdevice-test", "octocat", "tok_1"))
	got, err := b.Read(ctx, "ghdevice-test", "octocat")
	require.NoError(t, err)
	assert.Equal(t, "tok_1", got)

	require.NoError(t, b.Write(ctx, "ghdevice-test", "octocat", "tok_2"))
	got, err = b.Read(ctx, "ghdevice-test", "octocat")
	require.NoError(t, err)
	assert.Equal(t, "tok_2", got, "write overwrites")

	_, err = b.Read(ctx, "ghdevice-other", "octocat")
	assert.ErrorIs(t, err, ErrNotFound, "services are separate namespaces")

	require.NoError(t, b.Delete(ctx, "ghdevice-test", "octocat"))
	_, err = b.Read(ctx, "ghdevice-test", "octocat")
	assert.ErrorIs(t, err, ErrNotFound, "read after delete")
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	testBackend(t, b)
	assert.ErrorIs(t, b.Delete(context.Background(), "ghdevice-test", "nobody"), ErrNotFound)
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.toml")
	testBackend(t, NewFileBackend(path))
}

func TestFileBackend_PermissionsAndFormat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := filepath.Join(t.TempDir(), "ghdevice")
	path := filepath.Join(dir, "credentials.toml")
	b := NewFileBackend(path)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "ghdevice", "octocat", "tok_abc"))
	require.NoError(t, b.Write(ctx, "ghdevice-debug", "hubot", "tok_dbg"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	var contents fileContents
	_, err = toml.DecodeFile(path, &contents)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]string{
		"ghdevice":       {"octocat": "tok_abc"},
		"ghdevice-debug": {"hubot": "tok_dbg"},
	}, contents.Services)

	// No temp files are left behind by the atomic rename
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	require.NoError(t, os.WriteFile(path, []byte("services = [not toml"), 0600))

	_, err := NewFileBackend(path).Read(context.Background(), "ghdevice", "octocat")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestDefaultFilePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := DefaultFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ghdevice", "credentials.toml"), path)
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()
	testBackend(t, NewKeyringBackend())
	assert.NoError(t, NewKeyringBackend().Probe(context.Background(), "ghdevice-test"))
}

func TestKeyringBackend_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: session bus not available"))
	t.Cleanup(keyring.MockInit)

	b := NewKeyringBackend()
	_, err := b.Read(context.Background(), "ghdevice", "octocat")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Error(t, b.Probe(context.Background(), "ghdevice"))
	assert.ErrorIs(t, b.Write(context.Background(), "ghdevice", "octocat", "tok"), ErrBackendUnavailable)
}

// fakeSecretTool emulates the secret-tool command line
type fakeSecretTool struct {
	mu      sync.Mutex
	secrets map[string]string
	calls   [][]string
	stdins  []string
	fail    error
}

func newFakeSecretTool() *fakeSecretTool {
	return &fakeSecretTool{secrets: make(map[string]string)}
}

// exitOne returns a real *exec.ExitError with status 1
func exitOne(t *testing.T) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit 1").Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	return err
}

func (f *fakeSecretTool) runner(t *testing.T) CommandRunner {
	notFound := exitOne(t)
	return func(_ context.Context, stdin string, name string, args ...string) ([]byte, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.calls = append(f.calls, append([]string{name}, args...))
		f.stdins = append(f.stdins, stdin)
		if f.fail != nil {
			return nil, f.fail
		}

		// args: <op> [--label=...] service S account A
		attrs := args[len(args)-4:]
		key := attrs[1] + "/" + attrs[3]
		switch args[0] {
		case "lookup":
			secret, ok := f.secrets[key]
			if !ok {
				return nil, notFound
			}
			return []byte(secret), nil
		case "store":
			f.secrets[key] = stdin
			return nil, nil
		case "clear":
			delete(f.secrets, key)
			return nil, nil
		}
		return nil, errors.New("unknown secret-tool operation")
	}
}

func TestSecretToolBackend(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("secret-tool is linux only")
	}
	fake := newFakeSecretTool()
	b := NewSecretToolBackend(fake.runner(t))
	testBackend(t, b)

	// The secret travels on stdin, never in argv
	for i, argv := range fake.calls {
		if argv[1] == "store" {
			assert.NotContains(t, strings.Join(argv, " "), fake.stdins[i])
			assert.Contains(t, argv, "--label=ghdevice-test token for octocat")
		}
	}
}

func TestSecretToolBackend_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("secret-tool is linux only")
	}
	fake := newFakeSecretTool()
	fake.fail = errors.New("secret-tool: Cannot create an item in a locked collection")
	b := NewSecretToolBackend(fake.runner(t))

	_, err := b.Read(context.Background(), "ghdevice", "octocat")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, b.Write(context.Background(), "ghdevice", "octocat", "tok"), ErrBackendUnavailable)
}
