package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlobNameRoundTrip(t *testing.T) {
	name := BlobName("router-20240101")
	assert.Equal(t, "router-20240101.tar.gz.enc", name)

	tag, ok := TagFromBlob(name)
	assert.True(t, ok)
	assert.Equal(t, "router-20240101", tag)
}

func TestTagFromBlob_ForeignObject(t *testing.T) {
	_, ok := TagFromBlob("random-file.txt")
	assert.False(t, ok)
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	descs := []RemoteDescriptor{
		{Tag: "a", CreatedAt: t0},
		{Tag: "c", CreatedAt: t0.Add(2 * time.Hour)},
		{Tag: "b", CreatedAt: t0.Add(time.Hour)},
	}
	SortNewestFirst(descs)

	assert.Equal(t, []string{"c", "b", "a"}, []string{descs[0].Tag, descs[1].Tag, descs[2].Tag})
}

func TestSortNewestFirst_TieBreaksByTagDescending(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	descs := []RemoteDescriptor{
		{Tag: "alpha", CreatedAt: t0},
		{Tag: "zulu", CreatedAt: t0},
		{Tag: "mike", CreatedAt: t0},
	}
	SortNewestFirst(descs)

	assert.Equal(t, []string{"zulu", "mike", "alpha"}, []string{descs[0].Tag, descs[1].Tag, descs[2].Tag})
}
