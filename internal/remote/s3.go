package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/offsitebkp/internal/backup"
	"github.com/dmitrijs2005/offsitebkp/internal/common"
	"github.com/dmitrijs2005/offsitebkp/internal/config"
)

// s3Store stores backup objects in a single S3 bucket, optionally under a
// key prefix.
type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Store(ctx context.Context, cfg *config.Config) (*s3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrValidation)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading aws config: %w", common.ErrTransfer, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			// custom endpoints (minio etc.) rarely support virtual-hosted buckets
			o.UsePathStyle = true
		}
	})

	return &s3Store{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: normalizePrefix(cfg.S3Prefix),
	}, nil
}

// normalizePrefix ensures a non-empty prefix ends with exactly one slash so
// keys join cleanly.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (s *s3Store) key(name string) string {
	return s.prefix + name
}

// nameFromKey strips the store prefix from a listed key. The second return
// value is false for keys outside the prefix.
func nameFromKey(key string, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(key, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (s *s3Store) Put(ctx context.Context, name string, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", common.ErrIO, srcPath, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("%w: putting %s: %w", common.ErrTransfer, name, err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, name string, destPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, name)
		}
		return fmt.Errorf("%w: getting %s: %w", common.ErrTransfer, name, err)
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", common.ErrIO, destPath, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
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

func (s *s3Store) List(ctx context.Context) ([]backup.RemoteDescriptor, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var descs []backup.RemoteDescriptor

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing bucket %s: %w", common.ErrTransfer, s.bucket, err)
		}
		for _, obj := range page.Contents {
			name, ok := nameFromKey(aws.ToString(obj.Key), s.prefix)
			if !ok {
				continue
			}
			tag, ok := backup.TagFromBlob(name)
			if !ok {
				continue
			}
			descs = append(descs, backup.RemoteDescriptor{
				Tag:       tag,
				CreatedAt: aws.ToTime(obj.LastModified),
				SizeBytes: aws.ToInt64(obj.Size),
			})
		}
	}

	return descs, nil
}

func (s *s3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %w", common.ErrTransfer, name, err)
	}
	return nil
}
