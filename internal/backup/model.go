// Package backup defines the data model shared by the staging, remote-store
// and orchestration layers. Values are constructed fresh per run and never
// mutated; state transitions are expressed through SyncOutcome records.
package backup

import (
	"sort"
	"strings"
	"time"
)

// ProcessedSuffix is appended to a backup tag to form the off-site blob name:
// a staged set is archived to tar.gz and then encrypted before upload.
const ProcessedSuffix = ".tar.gz.enc"

// BlobName returns the off-site object name for a backup tag.
func BlobName(tag string) string {
	return tag + ProcessedSuffix
}

// TagFromBlob recovers the backup tag from an off-site object name. The
// second return value is false when the name does not carry the processed
// suffix and therefore is not one of ours.
func TagFromBlob(name string) (string, bool) {
	if !strings.HasSuffix(name, ProcessedSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, ProcessedSuffix), true
}

// BackupSet is a single staged backup artifact on the NFS staging area.
type BackupSet struct {
	// Identifier is derived from the staged directory or file name.
	Identifier string
	// LocalPath is the absolute staged location; empty once removed.
	LocalPath string
	SizeBytes int64
	// CreatedAt is the source mtime for staged sets.
	CreatedAt time.Time
	// Tag is the name used for selection; equal to Identifier.
	Tag string
}

// RemoteDescriptor is a projection of one off-site object. The remote listing
// it comes from is the source of truth for retention decisions and is never
// cached beyond a single run.
type RemoteDescriptor struct {
	Tag string
	// CreatedAt is the remote object's creation/modification timestamp.
	CreatedAt time.Time
	SizeBytes int64
}

// Status classifies the outcome of one workflow step for one backup set.
type Status string

const (
	StatusUploaded           Status = "uploaded"
	StatusSkippedExists      Status = "skipped_already_offsite"
	StatusLocalDeleteSkipped Status = "local_delete_skipped"
	StatusFailed             Status = "failed"
	StatusDownloaded         Status = "downloaded"
	StatusNotFound           Status = "not_found"
	StatusDeleted            Status = "deleted"
	StatusDeleteFailed       Status = "delete_failed"
)

// SyncOutcome is the per-set result record produced by the orchestrator.
type SyncOutcome struct {
	Tag    string
	Status Status
	// Path names the final destination for downloads.
	Path string
	Err  error
}

// SortNewestFirst orders descriptors by CreatedAt descending, breaking ties
// by tag descending so the order is deterministic and reproducible.
func SortNewestFirst(descs []RemoteDescriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		if !descs[i].CreatedAt.Equal(descs[j].CreatedAt) {
			return descs[i].CreatedAt.After(descs[j].CreatedAt)
		}
		return descs[i].Tag > descs[j].Tag
	})
}
