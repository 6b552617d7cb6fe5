package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/config"
)

// azureStore stores backup objects as blobs in a single container.
type azureStore struct {
	client    *azblob.Client
	container string
}

func newAzureStore(ctx context.Context, cfg *config.Config) (*azureStore, error) {
	if cfg.AzureContainer == "" {
		return nil, fmt.Errorf("%w: azure container is required", common.ErrValidation)
	}

	client, err := buildAzureClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := ensureContainer(ctx, client, cfg.AzureContainer); err != nil {
		return nil, err
	}

	return &azureStore{client: client, container: cfg.AzureContainer}, nil
}

func buildAzureClient(cfg *config.Config) (*azblob.Client, error) {
	if cfg.AzureConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: bad azure connection string: %w", common.ErrValidation, err)
		}
		return client, nil
	}

	if cfg.AzureAccountName != "" && cfg.AzureAccountKey != "" {
		endpoint := cfg.AzureEndpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
		}
		cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("%w: bad azure shared key credential: %w", common.ErrValidation, err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: building azure client: %w", common.ErrValidation, err)
		}
		return client, nil
	}

	return nil, fmt.Errorf("%w: no azure credentials: set AZURE_STORAGE_CONNECTION_STRING or account name and key", common.ErrValidation)
}

func ensureContainer(ctx context.Context, client *azblob.Client, container string) error {
	_, err := client.CreateContainer(ctx, container, nil)
	if err == nil || bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return fmt.Errorf("%w: ensuring container %s: %w", common.ErrTransfer, container, err)
}

func (a *azureStore) Put(ctx context.Context, name string, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", common.ErrIO, srcPath, err)
	}
	defer f.Close()

	if _, err := a.client.UploadStream(ctx, a.container, name, f, nil); err != nil {
		return fmt.Errorf("%w: uploading %s: %w", common.ErrTransfer, name, err)
	}
	return nil
}

func (a *azureStore) Get(ctx context.Context, name string, destPath string) error {
	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, name)
		}
		return fmt.Errorf("%w: downloading %s: %w", common.ErrTransfer, name, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", common.ErrIO, destPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("%w: writing %s: %w", common.ErrIO, destPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("%w: closing %s: %w", common.ErrIO, destPath, err)
	}
	return nil
}

func (a *azureStore) List(ctx context.Context) ([]backup.RemoteDescriptor, error) {
	var descs []backup.RemoteDescriptor

	pager := a.client.NewListBlobsFlatPager(a.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing container %s: %w", common.ErrTransfer, a.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || strings.Contains(*item.Name, "/") {
				continue
			}
			tag, ok := backup.TagFromBlob(*item.Name)
			if !ok {
				continue
			}
			desc := backup.RemoteDescriptor{Tag: tag}
			if item.Properties != nil {
				if item.Properties.LastModified != nil {
					desc.CreatedAt = *item.Properties.LastModified
				}
				if item.Properties.ContentLength != nil {
					desc.SizeBytes = *item.Properties.ContentLength
				}
			}
			descs = append(descs, desc)
		}
	}

	return descs, nil
}

func (a *azureStore) Delete(ctx context.Context, name string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("%w: deleting %s: %w", common.ErrTransfer, name, err)
	}
	return nil
}
