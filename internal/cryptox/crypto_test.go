package cryptox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsitebkp/internal/common"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestFileCipher_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	content := []byte("router config dump\nline two\n")

	plain := writeFile(t, dir, "bkp-1.tar.gz", content)

	c := New([]byte("correct horse"))
	enc, err := c.Encrypt(ctx, plain, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bkp-1.tar.gz.enc"), enc)

	outDir := t.TempDir()
	dec, err := c.Decrypt(ctx, enc, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "bkp-1.tar.gz"), dec)

	got, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileCipher_CiphertextDiffersFromPlaintext(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "set.tar.gz", []byte("secret payload"))

	enc, err := New([]byte("pw")).Encrypt(context.Background(), plain, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret payload")
}

func TestFileCipher_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	plain := writeFile(t, dir, "set.tar.gz", []byte("payload"))

	enc, err := New([]byte("right")).Encrypt(ctx, plain, dir)
	require.NoError(t, err)

	outDir := t.TempDir()
	_, err = New([]byte("wrong")).Decrypt(ctx, enc, outDir)
	assert.ErrorIs(t, err, common.ErrDecryption)

	// No partial plaintext may be left behind.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileCipher_TamperedCiphertext(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	plain := writeFile(t, dir, "set.tar.gz", []byte("payload"))

	c := New([]byte("pw"))
	enc, err := c.Encrypt(ctx, plain, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(enc)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(enc, data, 0o600))

	_, err = c.Decrypt(ctx, enc, t.TempDir())
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestFileCipher_TruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	bogus := writeFile(t, dir, "short.enc", []byte("OBK1xx"))

	_, err := New([]byte("pw")).Decrypt(context.Background(), bogus, t.TempDir())
	assert.ErrorIs(t, err, common.ErrDecryption)
}

func TestFileCipher_MissingInput(t *testing.T) {
	_, err := New([]byte("pw")).Encrypt(context.Background(), "/does/not/exist", t.TempDir())
	assert.ErrorIs(t, err, common.ErrEncryption)
}
