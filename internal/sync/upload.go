package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/retention"
)

// RunUpload executes the upload workflow: select the latest staged set,
// archive and encrypt it, upload it, verify the off-site copy, and only then
// (when cleanup is enabled) delete the local copy and prune old off-site
// sets.
//
// The returned slice carries one outcome for the upload itself followed by
// the retention outcomes. An empty slice with a nil error means the staging
// area held nothing to upload.
//
// The ordering invariant is upload-before-delete: no copy of a backup set is
// removed anywhere before a verified replacement exists off-site.
func (o *Orchestrator) RunUpload(ctx context.Context) ([]backup.SyncOutcome, error) {
	sets, err := o.source.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		o.log.Info(ctx, "no staged backup sets found, nothing to do", "dir", o.source.Dir())
		return nil, nil
	}

	latest := selectLatest(sets)
	log := o.log.With("tag", latest.Tag)
	log.Info(ctx, "selected latest backup set", "path", latest.LocalPath, "size", latest.SizeBytes)

	descs, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}

	outcome := backup.SyncOutcome{Tag: latest.Tag}
	if hasVerifiedCopy(descs, latest.Tag) {
		log.Info(ctx, "backup set already off-site, skipping upload")
		outcome.Status = backup.StatusSkippedExists
	} else {
		outcome = o.uploadSet(ctx, latest)
		if outcome.Err != nil {
			return []backup.SyncOutcome{outcome}, outcome.Err
		}
	}

	outcomes := []backup.SyncOutcome{outcome}
	if !o.opts.DoCleanup {
		return outcomes, nil
	}

	// The off-site copy is verified at this point, so a failed local delete
	// is downgraded to LocalDeleteSkipped: a stale local copy is safe, a
	// lost remote copy is not.
	if err := o.source.Remove(latest.LocalPath); err != nil {
		log.Warn(ctx, "could not remove local copy after upload", "error", err)
		outcomes[0].Status = backup.StatusLocalDeleteSkipped
		outcomes[0].Err = err
	} else {
		log.Info(ctx, "removed local copy", "path", latest.LocalPath)
	}

	retained, err := o.retentionPass(ctx)
	if err != nil {
		return outcomes, err
	}
	outcomes = append(outcomes, retained...)

	if o.opts.DoOnsiteCleanup {
		removed, err := o.source.RetainNewest(ctx, o.opts.OnsiteRetention)
		if err != nil {
			log.Warn(ctx, "onsite cleanup incomplete", "error", err)
		}
		for _, id := range removed {
			log.Info(ctx, "removed old staged set", "identifier", id)
		}
	}

	return outcomes, nil
}

// uploadSet archives, encrypts, uploads and verifies one set. All scratch
// files live in a per-run workdir removed on every exit path.
func (o *Orchestrator) uploadSet(ctx context.Context, set backup.BackupSet) backup.SyncOutcome {
	outcome := backup.SyncOutcome{Tag: set.Tag}
	fail := func(err error) backup.SyncOutcome {
		outcome.Status = backup.StatusFailed
		outcome.Err = err
		return outcome
	}

	workdir, err := o.tempWorkdir()
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(workdir)

	archivePath, err := o.source.Archive(ctx, set, workdir)
	if err != nil {
		return fail(err)
	}

	cipherPath, err := o.crypto.Encrypt(ctx, archivePath, workdir)
	if err != nil {
		return fail(err)
	}

	if err := o.putWithRetry(ctx, backup.BlobName(set.Tag), cipherPath); err != nil {
		return fail(err)
	}

	if err := o.verifyUpload(ctx, set.Tag); err != nil {
		return fail(err)
	}

	o.log.Info(ctx, "upload verified", "tag", set.Tag)
	outcome.Status = backup.StatusUploaded
	return outcome
}

// verifyUpload re-lists the remote store and confirms a descriptor with the
// uploaded tag and a non-zero size exists. The listing is the authority: the
// local copy is only ever deleted after this check passes.
func (o *Orchestrator) verifyUpload(ctx context.Context, tag string) error {
	descs, err := o.store.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrVerification, err)
	}
	for _, d := range descs {
		if d.Tag == tag && d.SizeBytes > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not present off-site after upload", common.ErrVerification, tag)
}

// selectLatest picks the newest set by CreatedAt, breaking ties by the
// lexicographically greatest tag so the choice is reproducible.
func selectLatest(sets []backup.BackupSet) backup.BackupSet {
	latest := sets[0]
	for _, set := range sets[1:] {
		if set.CreatedAt.After(latest.CreatedAt) ||
			(set.CreatedAt.Equal(latest.CreatedAt) && set.Tag > latest.Tag) {
			latest = set
		}
	}
	return latest
}

func hasTag(descs []backup.RemoteDescriptor, tag string) bool {
	for _, d := range descs {
		if d.Tag == tag {
			return true
		}
	}
	return false
}

// hasVerifiedCopy reports whether a usable off-site copy of the tag exists.
// The same non-zero-size criterion as verifyUpload: a zero-size object, such
// as the leftover of an interrupted upload, does not count — the set must be
// uploaded again before any local copy may be removed.
func hasVerifiedCopy(descs []backup.RemoteDescriptor, tag string) bool {
	for _, d := range descs {
		if d.Tag == tag && d.SizeBytes > 0 {
			return true
		}
	}
	return false
}

// retentionPass lists the remote store, applies the keep-newest-K policy and
// deletes the remainder. Deletions are independent: one failure is recorded
// and the rest proceed.
func (o *Orchestrator) retentionPass(ctx context.Context) ([]backup.SyncOutcome, error) {
	descs, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}

	decision, err := retention.Compute(descs, o.opts.RetentionCount)
	if err != nil {
		return nil, err
	}

	var outcomes []backup.SyncOutcome
	for _, desc := range decision.Delete {
		outcome := backup.SyncOutcome{Tag: desc.Tag}
		if err := o.store.Delete(ctx, backup.BlobName(desc.Tag)); err != nil {
			o.log.Error(ctx, "could not delete stale off-site set", "tag", desc.Tag, "error", err)
			outcome.Status = backup.StatusDeleteFailed
			outcome.Err = err
		} else {
			o.log.Info(ctx, "deleted stale off-site set", "tag", desc.Tag)
			outcome.Status = backup.StatusDeleted
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// RunRetention runs a standalone retention pass against the off-site store.
func (o *Orchestrator) RunRetention(ctx context.Context) ([]backup.SyncOutcome, error) {
	return o.retentionPass(ctx)
}
