// Package s3 provides an S3-compatible storage backend. Files are objects
// keyed by their path without the leading slash; directories are zero-byte
// marker objects whose key ends in "/".
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage"
)

// deleteBatch is the S3 DeleteObjects limit.
const deleteBatch = 1000

// BackendConfig holds S3 connection settings.
type BackendConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// api is the subset of *s3.Client the backend calls.
type api interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Backend implements storage.Backend using S3/MinIO.
type S3Backend struct {
	client api
	bucket string
}

// NewBackend creates a new S3 backend from a BackendConfig.
func NewBackend(ctx context.Context, cfg BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	backend := &S3Backend{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := backend.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return backend, nil
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		_, createErr := b.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(b.bucket),
		})
		if createErr != nil {
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
		}
		logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	}
	return nil
}

// objectKey maps "/a/b.txt" to "a/b.txt".
func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirPrefix maps "/a" to "a/" and "/" to "".
func dirPrefix(p string) string {
	key := objectKey(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (b *S3Backend) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// dirExists reports whether a marker object or any object under the prefix
// exists. The root always exists.
func (b *S3Backend) dirExists(ctx context.Context, p string) (bool, error) {
	prefix := dirPrefix(p)
	if prefix == "" {
		return true, nil
	}
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// ReadDir lists one level below p using the "/" delimiter.
func (b *S3Backend) ReadDir(ctx context.Context, p string) ([]storage.Entry, error) {
	dir := path.Clean("/" + p)
	prefix := dirPrefix(dir)

	if ok, err := b.dirExists(ctx, dir); err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	} else if !ok {
		if _, err := b.head(ctx, objectKey(dir)); err == nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, storage.ErrNotDirectory)
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, storage.ErrNotFound)
	}

	entries := []storage.Entry{}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, storage.Entry{
				Name:  name,
				Path:  storage.Join(dir, name),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.HasSuffix(name, "/") {
				// the directory's own marker
				continue
			}
			entries = append(entries, storage.Entry{
				Name: name,
				Path: storage.Join(dir, name),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return entries, nil
}

// Stat heads the object, falling back to the directory view of the path.
// S3 has no creation time; LastModified is reported for both.
func (b *S3Backend) Stat(ctx context.Context, p string) (*storage.Metadata, error) {
	key := objectKey(p)
	if key != "" {
		out, err := b.head(ctx, key)
		if err == nil {
			mod := aws.ToTime(out.LastModified)
			return &storage.Metadata{
				Size:     aws.ToInt64(out.ContentLength),
				Created:  mod,
				Modified: mod,
			}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	ok, err := b.dirExists(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", p, storage.ErrNotFound)
	}
	return &storage.Metadata{IsDir: true}, nil
}

// PutFile uploads the body as a single object.
func (b *S3Backend) PutFile(ctx context.Context, p string, body io.Reader, size int64) error {
	key := objectKey(p)
	if key == "" {
		return fmt.Errorf("put %s: %w", p, storage.ErrIsDirectory)
	}
	if ok, err := b.dirExists(ctx, p); err == nil && ok {
		return fmt.Errorf("put %s: %w", p, storage.ErrIsDirectory)
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	logging.Debug("S3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// GetFile streams the object body.
func (b *S3Backend) GetFile(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	key := objectKey(p)
	if key == "" {
		return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrIsDirectory)
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			if ok, _ := b.dirExists(ctx, p); ok {
				return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrIsDirectory)
			}
			return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// RemoveFile deletes one object. S3 deletes are idempotent, so existence is
// checked first to report ErrNotFound.
func (b *S3Backend) RemoveFile(ctx context.Context, p string) error {
	key := objectKey(p)
	if key == "" {
		return fmt.Errorf("delete %s: %w", p, storage.ErrIsDirectory)
	}
	if _, err := b.head(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if ok, _ := b.dirExists(ctx, p); ok {
				return fmt.Errorf("delete %s: %w", p, storage.ErrIsDirectory)
			}
			return fmt.Errorf("delete %s: %w", p, storage.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", p, err)
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	logging.Debug("S3 delete object", zap.String("key", key))
	return nil
}

// MakeDir writes a marker object for p. Parents are implicit in S3 key
// space.
func (b *S3Backend) MakeDir(ctx context.Context, p string) error {
	prefix := dirPrefix(p)
	if prefix == "" {
		return nil
	}
	if _, err := b.head(ctx, objectKey(p)); err == nil {
		return fmt.Errorf("mkdir %s: %w", p, storage.ErrNotDirectory)
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(prefix),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

// RemoveAll deletes every object under the prefix in batches. A plain
// object at the key is refused.
func (b *S3Backend) RemoveAll(ctx context.Context, p string) error {
	prefix := dirPrefix(p)
	if prefix == "" {
		return fmt.Errorf("remove all %s: %w", p, storage.ErrInvalidPath)
	}

	var keys []types.ObjectIdentifier
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("remove all %s: list: %w", p, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, types.ObjectIdentifier{Key: obj.Key})
		}
	}
	if len(keys) == 0 {
		if _, err := b.head(ctx, objectKey(p)); err == nil {
			return fmt.Errorf("remove all %s: %w", p, storage.ErrNotDirectory)
		}
		return fmt.Errorf("remove all %s: %w", p, storage.ErrNotFound)
	}

	start := time.Now()
	for i := 0; i < len(keys); i += deleteBatch {
		end := min(i+deleteBatch, len(keys))
		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: keys[i:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("remove all %s: %w", p, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("remove all %s: %d objects failed, first %s: %s",
				p, len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	logging.Debug("S3 remove prefix",
		zap.String("prefix", prefix),
		zap.Int("objects", len(keys)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Type returns "s3".
func (b *S3Backend) Type() string { return "s3" }

// Close is a no-op; the SDK client holds no persistent resources.
func (b *S3Backend) Close() error { return nil }
