package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/cryptox"
	"github.com/dmitrijs2005/offsitebkp/internal/staging"
)

// Round-trip through the real archiver and cipher with an in-memory store:
// stage → upload → delete local → download → byte-identical restore.
func TestUploadDownloadRoundTrip(t *testing.T) {
	stageDir := t.TempDir()

	files := map[string][]byte{
		"running-config": []byte("hostname core-sw-01\ninterface Gi0/1\n"),
		"startup-config": []byte("hostname core-sw-01\n"),
		"vlan.dat":       {0x01, 0x02, 0x03, 0x00, 0xff},
	}
	setDir := filepath.Join(stageDir, "core-sw-01_2024-03-01")
	require.NoError(t, os.MkdirAll(setDir, 0o750))
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(setDir, name), data, 0o640))
	}
	mtime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(setDir, mtime, mtime))

	store := newFakeStore()
	source := staging.New(stageDir, 3, nil)
	cipher := cryptox.New([]byte("correct horse battery staple"))

	o := New(cipher, store, source, nil, Options{
		RetentionCount: 4,
		DoCleanup:      true,
		TempDir:        t.TempDir(),
	})
	o.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}

	ctx := context.Background()

	outcomes, err := o.RunUpload(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, backup.StatusUploaded, outcomes[0].Status)
	assert.Equal(t, "core-sw-01_2024-03-01", outcomes[0].Tag)

	// local copy gone, off-site copy present and opaque
	assert.NoDirExists(t, setDir)
	blob := store.objects[backup.BlobName("core-sw-01_2024-03-01")]
	require.NotEmpty(t, blob)
	assert.NotContains(t, string(blob), "core-sw-01", "ciphertext must not leak plaintext")

	restoreDir := t.TempDir()
	outcome, err := o.RunDownload(ctx, "core-sw-01_2024-03-01", restoreDir)
	require.NoError(t, err)
	assert.Equal(t, backup.StatusDownloaded, outcome.Status)
	assert.Equal(t, filepath.Join(restoreDir, "core-sw-01_2024-03-01"), outcome.Path)

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(outcome.Path, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

// Downloading with the wrong passphrase must fail with a decryption error
// and leave the destination untouched.
func TestRoundTrip_WrongPassphrase(t *testing.T) {
	stageDir := t.TempDir()
	setDir := filepath.Join(stageDir, "core-sw-01_2024-03-01")
	require.NoError(t, os.MkdirAll(setDir, 0o750))
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(setDir, name), []byte(name), 0o640))
	}

	store := newFakeStore()
	source := staging.New(stageDir, 3, nil)

	up := New(cryptox.New([]byte("right")), store, source, nil, Options{TempDir: t.TempDir()})
	_, err := up.RunUpload(context.Background())
	require.NoError(t, err)

	down := New(cryptox.New([]byte("wrong")), store, source, nil, Options{TempDir: t.TempDir()})

	restoreDir := t.TempDir()
	outcome, err := down.RunDownload(context.Background(), "core-sw-01_2024-03-01", restoreDir)
	require.ErrorIs(t, err, common.ErrDecryption)
	assert.Equal(t, backup.StatusFailed, outcome.Status)

	entries, err := os.ReadDir(restoreDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
