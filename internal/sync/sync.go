// Package sync implements the upload/retention/download state machine that
// moves backup sets between the NFS staging area and the off-site store. It
// talks to the gateways through narrow interfaces so every workflow can be
// exercised against fakes.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/logging"
)

// CryptoGateway seals and opens single-file backup artifacts.
type CryptoGateway interface {
	Encrypt(ctx context.Context, plainPath, destDir string) (string, error)
	Decrypt(ctx context.Context, cipherPath, destDir string) (string, error)
}

// RemoteStore is the off-site object store. Names passed in are full blob
// names; descriptors come back with the tag already stripped of the suffix.
type RemoteStore interface {
	Put(ctx context.Context, name string, srcPath string) error
	Get(ctx context.Context, name string, destPath string) error
	List(ctx context.Context) ([]backup.RemoteDescriptor, error)
	Delete(ctx context.Context, name string) error
}

// LocalSource is the staging-area gateway.
type LocalSource interface {
	Dir() string
	Enumerate(ctx context.Context) ([]backup.BackupSet, error)
	Archive(ctx context.Context, set backup.BackupSet, destDir string) (string, error)
	Remove(path string) error
	RetainNewest(ctx context.Context, n int) ([]string, error)
}

// Options tunes one Orchestrator instance.
type Options struct {
	// RetentionCount is K: how many newest off-site sets to keep.
	RetentionCount int
	// DoCleanup gates both the local delete after a verified upload and the
	// off-site retention pass. When false the upload workflow only uploads.
	DoCleanup bool
	// DoOnsiteCleanup additionally prunes the staging area down to
	// OnsiteRetention newest sets after a successful upload.
	DoOnsiteCleanup bool
	OnsiteRetention int
	// TempDir overrides the base directory for per-run scratch space.
	// Empty means os.TempDir().
	TempDir string
}

// Orchestrator drives the upload, download, list and retention workflows.
// One instance serves one invocation; it holds no cross-run state.
type Orchestrator struct {
	crypto CryptoGateway
	store  RemoteStore
	source LocalSource
	log    logging.Logger
	opts   Options

	// newBackOff builds the retry policy for one transfer. Swapped out in
	// tests to avoid real delays.
	newBackOff func() backoff.BackOff
}

func New(crypto CryptoGateway, store RemoteStore, source LocalSource, log logging.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Orchestrator{
		crypto: crypto,
		store:  store,
		source: source,
		log:    log,
		opts:   opts,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
}

// retry runs op under the orchestrator's backoff policy. An op can mark an
// error permanent with backoff.Permanent to stop retrying early.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(o.newBackOff(), ctx))
}

func (o *Orchestrator) putWithRetry(ctx context.Context, name, srcPath string) error {
	return o.retry(ctx, func() error {
		return o.store.Put(ctx, name, srcPath)
	})
}

func (o *Orchestrator) getWithRetry(ctx context.Context, name, destPath string) error {
	return o.retry(ctx, func() error {
		err := o.store.Get(ctx, name, destPath)
		if errors.Is(err, common.ErrNotFound) {
			// the object will not appear by retrying
			return backoff.Permanent(err)
		}
		return err
	})
}

// tempWorkdir creates a unique per-run scratch directory. The caller removes
// it on every exit path.
func (o *Orchestrator) tempWorkdir() (string, error) {
	base := o.opts.TempDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "offsitebkp-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: creating workdir %s: %v", common.ErrIO, dir, err)
	}
	return dir, nil
}
