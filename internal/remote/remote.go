// Package remote provides off-site object store adapters. Two providers are
// supported, Amazon S3 (or any S3-compatible endpoint) and Azure Blob
// Storage; both expose the same Store interface so the orchestration layer
// does not care which one is configured.
package remote

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/config"
)

// Store is the minimal surface the workflows need from an off-site store.
// Object names are the processed blob names (tag + suffix); descriptors
// returned by List carry the tag with the suffix already stripped.
type Store interface {
	// Put uploads the file at srcPath under the given object name,
	// overwriting any existing object.
	Put(ctx context.Context, name string, srcPath string) error
	// Get downloads the named object to destPath. Returns an error wrapping
	// common.ErrNotFound when the object does not exist.
	Get(ctx context.Context, name string, destPath string) error
	// List returns descriptors for every processed backup object, in no
	// particular order. Foreign objects without the processed suffix are
	// filtered out.
	List(ctx context.Context) ([]backup.RemoteDescriptor, error)
	// Delete removes the named object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, name string) error
}

// NewStore builds the Store adapter selected by cfg.StorageProvider.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageProvider {
	case config.ProviderS3:
		return newS3Store(ctx, cfg)
	case config.ProviderAzure:
		return newAzureStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", common.ErrValidation, cfg.StorageProvider)
	}
}
