package sync

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buger/goterm"
	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/remote-mirror/pkg/config"
	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
	"github.com/sidkik/remote-mirror/pkg/remote/dir"
	"github.com/sidkik/remote-mirror/pkg/remote/mocks"
	mirror "github.com/sidkik/remote-mirror/pkg/sync"
)

var staleModTime = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

var photosAccount = config.Account{
	Name:        "photos",
	LocalRoot:   "/photos",
	Synchronize: true,
	Remote: config.Remote{
		Backend: config.BackendDir,
		Path:    "/remote",
	},
}

// setupDirAccount creates a local directory with one file, and a remote
// directory with one stale file. Both live on the returned filesystem.
func setupDirAccount(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/photos/a.jpeg", []byte("hello"), 0644))
	require.NoError(t, fs.MkdirAll("/remote", 0755))

	client := dir.New(fs, "/remote")
	require.NoError(t, client.Login(context.Background(), remote.Credentials{}))
	_, err := client.Upload(context.Background(), strings.NewReader("stale"),
		mirror.EncodeName("stale.txt", staleModTime),
		remote.Node{ID: "/", Kind: remote.Root}, 5, nil)
	require.NoError(t, err)

	newClient = func(cfg config.Remote) (remote.Client, remote.Credentials, error) {
		return dir.New(fs, cfg.Path), remote.Credentials{}, nil
	}
	return fs
}

func TestSelectAccounts(t *testing.T) {
	docs := config.Account{Name: "docs"}
	photos := config.Account{Name: "photos", Synchronize: true}
	music := config.Account{Name: "music", Synchronize: true}
	cfg := config.Config{Accounts: []config.Account{docs, photos, music}}

	tests := []struct {
		name        string
		names       []string
		expAccounts []config.Account
		expError    string
	}{
		{
			name:        "Default to synchronized accounts",
			expAccounts: []config.Account{photos, music},
		},
		{
			name:        "Explicit names include unsynchronized accounts",
			names:       []string{"music", "docs"},
			expAccounts: []config.Account{music, docs},
		},
		{
			name:     "Unknown account",
			names:    []string{"photos", "videos"},
			expError: "Unknown account \"videos\".\nRun `mirror config list` to see the configured accounts.",
		},
	}

	for _, test := range tests {
		accounts, err := selectAccounts(cfg, test.names)
		if test.expError != "" {
			assert.EqualError(t, err, test.expError, test.name)
			continue
		}
		assert.NoError(t, err, test.name)
		assert.Equal(t, test.expAccounts, accounts, test.name)
	}
}

func TestRunNoAccounts(t *testing.T) {
	cmd := syncCmd{out: bytes.NewBuffer(nil)}
	err := cmd.run(context.Background(), config.Config{
		Accounts: []config.Account{{Name: "docs"}},
	})
	assert.Contains(t, errors.GetPrintableMessage(err), "There are no accounts to synchronize.")
}

func TestSync(t *testing.T) {
	fs := setupDirAccount(t)
	logger, _ := logrusTest.NewNullLogger()
	out := bytes.NewBuffer(nil)
	cmd := syncCmd{yes: true, out: out, log: logger, fs: fs, clock: clockwork.NewFakeClock()}
	cfg := config.Config{Accounts: []config.Account{photosAccount}}

	require.NoError(t, cmd.run(context.Background(), cfg))
	assert.Contains(t, out.String(), "Changes to photos:\n"+
		goterm.Color(`  delete file \stale.txt`, goterm.RED)+"\n"+
		goterm.Color(`  upload file /photos/a.jpeg (5B) to \`, goterm.GREEN)+"\n"+
		"1 files to upload (5B), 0 folders to create, 1 files and 0 folders to delete\n")
	assert.Contains(t, out.String(),
		"Synchronized photos: 2 succeeded, 0 skipped, 0 failed, 0 not run.\n")

	exists, err := afero.Exists(fs, "/remote/stale_[[2016-1-1-0-0-0]].txt")
	assert.NoError(t, err)
	assert.False(t, exists)

	// Everything was uploaded, so the next sync doesn't do anything.
	out.Reset()
	require.NoError(t, cmd.run(context.Background(), cfg))
	assert.Equal(t, "photos is up to date.\n", out.String())
}

func TestSyncDryRun(t *testing.T) {
	fs := setupDirAccount(t)
	logger, _ := logrusTest.NewNullLogger()
	out := bytes.NewBuffer(nil)
	cmd := syncCmd{dryRun: true, out: out, log: logger, fs: fs}

	require.NoError(t, cmd.run(context.Background(),
		config.Config{Accounts: []config.Account{photosAccount}}))
	assert.Contains(t, out.String(), "1 files to upload (5B)")
	assert.NotContains(t, out.String(), "Synchronized photos")

	exists, err := afero.Exists(fs, "/remote/stale_[[2016-1-1-0-0-0]].txt")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestConfirmDelete(t *testing.T) {
	fs := setupDirAccount(t)
	logger, logHook := logrusTest.NewNullLogger()
	out := bytes.NewBuffer(nil)
	cmd := syncCmd{out: out, log: logger, fs: fs, clock: clockwork.NewFakeClock()}
	cfg := config.Config{Accounts: []config.Account{photosAccount}}

	// Deletions are denied when there's nobody to ask.
	isTerminal = func() bool { return false }
	promptYesOrNo = func(string) (bool, error) {
		t.Error("promptYesOrNo shouldn't be called")
		return false, nil
	}

	require.NoError(t, cmd.run(context.Background(), cfg))
	assert.Contains(t, out.String(),
		"Synchronized photos: 1 succeeded, 1 skipped, 0 failed, 0 not run.\n")
	require.NotEmpty(t, logHook.Entries)
	assert.Equal(t, "Not deleting since stdin isn't interactive. Use --yes to allow deletions.",
		logHook.Entries[0].Message)

	exists, err := afero.Exists(fs, "/remote/stale_[[2016-1-1-0-0-0]].txt")
	assert.NoError(t, err)
	assert.True(t, exists)

	// The user allows the deletion.
	var prompts []string
	isTerminal = func() bool { return true }
	promptYesOrNo = func(prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return true, nil
	}

	out.Reset()
	require.NoError(t, cmd.run(context.Background(), cfg))
	assert.Equal(t, []string{`Delete \stale.txt from the remote account?`}, prompts)
	assert.Contains(t, out.String(),
		"Synchronized photos: 1 succeeded, 0 skipped, 0 failed, 0 not run.\n")

	exists, err = afero.Exists(fs, "/remote/stale_[[2016-1-1-0-0-0]].txt")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestSyncAllContinuesAfterFailure(t *testing.T) {
	fs := setupDirAccount(t)
	logger, logHook := logrusTest.NewNullLogger()
	out := bytes.NewBuffer(nil)
	cmd := syncCmd{yes: true, out: out, log: logger, fs: fs, clock: clockwork.NewFakeClock()}

	broken := config.Account{
		Name:        "broken",
		LocalRoot:   "/photos",
		Synchronize: true,
		Remote: config.Remote{
			Backend: config.BackendDir,
			Path:    "/unmounted",
		},
	}

	err := cmd.run(context.Background(), config.Config{
		Accounts: []config.Account{broken, photosAccount},
	})
	assert.EqualError(t, err,
		`Failed to synchronize "broken". See the errors above for details.`)

	// The second account is still synchronized.
	assert.Contains(t, out.String(),
		"Synchronized photos: 2 succeeded, 0 skipped, 0 failed, 0 not run.\n")

	require.Len(t, logHook.Entries, 1)
	assert.Equal(t, "Failed to synchronize account", logHook.Entries[0].Message)
	assert.Equal(t, "broken", logHook.Entries[0].Data["account"])
	assert.Equal(t, `Remote directory "/unmounted" does not exist. Is it mounted?`,
		errors.GetPrintableMessage(logHook.Entries[0].Data["error"].(error)))
}

func TestSyncRetriesFromConfig(t *testing.T) {
	client := new(mocks.Client)
	newClient = func(config.Remote) (remote.Client, remote.Credentials, error) {
		return client, remote.Credentials{Username: "access", Password: "secret"}, nil
	}

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/photos/New", 0755))

	root := remote.Node{ID: "root", Kind: remote.Root}
	client.On("Login", mock.Anything, remote.Credentials{Username: "access", Password: "secret"}).
		Return(nil)
	client.On("ListNodes", mock.Anything).Return([]remote.Node{root}, nil)
	client.On("CreateFolder", mock.Anything, "New", root).
		Return(remote.Node{}, errors.New("unavailable")).Times(2)

	clock := clockwork.NewFakeClock()
	go func() {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
	}()

	logger, _ := logrusTest.NewNullLogger()
	out := bytes.NewBuffer(nil)
	cmd := syncCmd{yes: true, out: out, log: logger, fs: fs, clock: clock}

	// The command is attempted once, and retried once.
	retries := 1
	err := cmd.run(context.Background(), config.Config{
		Retries:  &retries,
		Accounts: []config.Account{photosAccount},
	})
	assert.Error(t, err)
	assert.Contains(t, out.String(),
		"Synchronized photos: 0 succeeded, 0 skipped, 1 failed, 0 not run.\n")
	client.AssertExpectations(t)
}

func TestWatch(t *testing.T) {
	client := new(mocks.Client)
	newClient = func(config.Remote) (remote.Client, remote.Credentials, error) {
		return client, remote.Credentials{}, nil
	}

	var listCount int32
	client.On("Login", mock.Anything, remote.Credentials{}).Return(nil)
	client.On("ListNodes", mock.Anything).
		Return([]remote.Node{{ID: "root", Kind: remote.Root}}, nil).
		Run(func(mock.Arguments) { atomic.AddInt32(&listCount, 1) })

	changes := make(chan struct{})
	watchDir = func(_ context.Context, root string, excludes []string) (chan struct{}, error) {
		assert.Equal(t, "/photos", root)
		assert.Equal(t, []string{"*.tmp"}, excludes)
		return changes, nil
	}

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/photos", 0755))

	acct := photosAccount
	acct.Exclude = []string{"*.tmp"}

	clock := clockwork.NewFakeClock()
	logger, _ := logrusTest.NewNullLogger()
	cmd := syncCmd{
		watch:        true,
		pollInterval: time.Minute,
		out:          bytes.NewBuffer(nil),
		log:          logger,
		fs:           fs,
		clock:        clock,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- cmd.run(ctx, config.Config{Accounts: []config.Account{acct}})
	}()

	listCountIs := func(exp int32) func() bool {
		return func() bool { return atomic.LoadInt32(&listCount) == exp }
	}

	// The accounts are synchronized right away.
	assert.Eventually(t, listCountIs(1), time.Second, 10*time.Millisecond)

	// And again after a local change.
	changes <- struct{}{}
	assert.Eventually(t, listCountIs(2), time.Second, 10*time.Millisecond)

	// And again after the poll interval.
	clock.BlockUntil(2)
	clock.Advance(time.Minute)
	assert.Eventually(t, listCountIs(3), time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
