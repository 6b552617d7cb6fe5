package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/staging"
)

// extractArchive is a seam for tests.
var extractArchive = staging.Extract

// RunDownload executes the restore workflow: fetch the blob for the given
// tag, decrypt it, and unpack the backup set into destDir. An empty destDir
// restores into the staging area. The intermediate ciphertext and archive
// live in a per-run workdir removed on every exit path; a failed decrypt or
// extract leaves no partial artifacts behind.
func (o *Orchestrator) RunDownload(ctx context.Context, tag, destDir string) (backup.SyncOutcome, error) {
	outcome := backup.SyncOutcome{Tag: tag}
	fail := func(status backup.Status, err error) (backup.SyncOutcome, error) {
		outcome.Status = status
		outcome.Err = err
		return outcome, err
	}

	if tag == "" {
		return fail(backup.StatusFailed, fmt.Errorf("%w: backup tag is required for download", common.ErrValidation))
	}
	if destDir == "" {
		destDir = o.source.Dir()
	}

	descs, err := o.store.List(ctx)
	if err != nil {
		return fail(backup.StatusFailed, err)
	}
	if !hasTag(descs, tag) {
		return fail(backup.StatusNotFound, fmt.Errorf("%w: no off-site backup tagged %s", common.ErrNotFound, tag))
	}

	workdir, err := o.tempWorkdir()
	if err != nil {
		return fail(backup.StatusFailed, err)
	}
	defer os.RemoveAll(workdir)

	blob := backup.BlobName(tag)
	cipherPath := filepath.Join(workdir, blob)
	if err := o.getWithRetry(ctx, blob, cipherPath); err != nil {
		return fail(backup.StatusFailed, err)
	}

	archivePath, err := o.crypto.Decrypt(ctx, cipherPath, workdir)
	if err != nil {
		return fail(backup.StatusFailed, err)
	}

	extracted, err := extractArchive(ctx, archivePath, destDir)
	if err != nil {
		return fail(backup.StatusFailed, err)
	}

	o.log.Info(ctx, "backup set restored", "tag", tag, "path", extracted)
	outcome.Status = backup.StatusDownloaded
	outcome.Path = extracted
	return outcome, nil
}

// ListAvailable returns the off-site backup sets, newest first. Pure read.
func (o *Orchestrator) ListAvailable(ctx context.Context) ([]backup.RemoteDescriptor, error) {
	descs, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	backup.SortNewestFirst(descs)
	return descs, nil
}

// FormatListing renders descriptors for operator consumption.
func FormatListing(descs []backup.RemoteDescriptor) string {
	if len(descs) == 0 {
		return "no off-site backups available\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-25s %s\n", "TAG", "CREATED", "SIZE")
	for _, d := range descs {
		fmt.Fprintf(&b, "%-40s %-25s %s\n",
			d.Tag,
			d.CreatedAt.UTC().Format(time.RFC3339),
			humanize.Bytes(uint64(d.SizeBytes)))
	}
	return b.String()
}
