package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/logging"
)

// makeSet creates a staged backup directory with n files and the given mtime.
func makeSet(t *testing.T, dir, name string, n int, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(path, 0o750))
	for i := 0; i < n; i++ {
		file := filepath.Join(path, name+"-file-"+string(rune('a'+i)))
		require.NoError(t, os.WriteFile(file, []byte("content of "+name), 0o600))
	}
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestEnumerate_SkipsIncompleteSets(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	makeSet(t, dir, "full-set", 3, now)
	makeSet(t, dir, "partial-set", 1, now)

	src := New(dir, 3, logging.NewNopLogger())
	sets, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	require.Len(t, sets, 1)
	assert.Equal(t, "full-set", sets[0].Identifier)
	assert.Equal(t, "full-set", sets[0].Tag)
	assert.Positive(t, sets[0].SizeBytes)
}

func TestEnumerate_AcceptsPlainFilesAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "single.cfg"), []byte("cfg"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))

	src := New(dir, 3, nil)
	sets, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	require.Len(t, sets, 1)
	assert.Equal(t, "single.cfg", sets[0].Identifier)
}

func TestEnumerate_MissingDirectory(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "nope"), 3, nil)
	_, err := src.Enumerate(context.Background())
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestArchiveExtract_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	makeSet(t, dir, "bkp-1", 3, time.Now())

	src := New(dir, 3, nil)
	sets, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, sets, 1)

	workDir := t.TempDir()
	arc, err := src.Archive(ctx, sets[0], workDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workDir, "bkp-1.tar.gz"), arc)

	outDir := t.TempDir()
	extracted, err := Extract(ctx, arc, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "bkp-1"), extracted)

	for _, suffix := range []string{"a", "b", "c"} {
		b, err := os.ReadFile(filepath.Join(extracted, "bkp-1-file-"+suffix))
		require.NoError(t, err)
		assert.Equal(t, "content of bkp-1", string(b))
	}
}

func TestExtract_CorruptArchive(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, os.WriteFile(bogus, []byte("not a gzip stream"), 0o600))

	_, err := Extract(context.Background(), bogus, t.TempDir())
	assert.ErrorIs(t, err, common.ErrIO)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := makeSet(t, dir, "bkp-1", 3, time.Now())

	src := New(dir, 3, nil)
	require.NoError(t, src.Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRetainNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	makeSet(t, dir, "old-1", 3, base)
	makeSet(t, dir, "old-2", 3, base.Add(10*time.Minute))
	makeSet(t, dir, "new-1", 3, base.Add(20*time.Minute))
	makeSet(t, dir, "new-2", 3, base.Add(30*time.Minute))

	src := New(dir, 3, nil)
	removed, err := src.RetainNewest(context.Background(), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old-1", "old-2"}, removed)

	sets, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	var names []string
	for _, s := range sets {
		names = append(names, s.Identifier)
	}
	assert.ElementsMatch(t, []string{"new-1", "new-2"}, names)
}

func TestRetainNewest_NothingToDo(t *testing.T) {
	dir := t.TempDir()
	makeSet(t, dir, "only", 3, time.Now())

	removed, err := New(dir, 3, nil).RetainNewest(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRetainNewest_InvalidCount(t *testing.T) {
	_, err := New(t.TempDir(), 3, nil).RetainNewest(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrValidation)
}
