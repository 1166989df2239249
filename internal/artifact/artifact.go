// Package artifact uploads checkpoint files to S3-compatible object storage.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/internal/outwriter"
	"github.com/huangsam/rosmap/schema"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore is the subset of *minio.Client used for uploads.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader writes every checkpoint as one object under <prefix>/<run>/<stage>.<ext>.
type Uploader struct {
	client objectStore
	bucket string
	prefix string
	run    string
	cfg    *contract.Config

	initOnce sync.Once
	initErr  error
}

var _ contract.CheckpointSink = &Uploader{} // Compile-time check

// NewUploader connects to the endpoint in cfg.S3. The run label separates
// the objects of different runs.
func NewUploader(cfg *contract.Config, run string) (*Uploader, error) {
	s3 := cfg.S3
	if !s3.Enabled() {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	client, err := minio.New(strings.TrimSpace(s3.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(s3.AccessKey, s3.SecretKey, ""),
		Secure: s3.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newUploader(client, cfg, run), nil
}

func newUploader(client objectStore, cfg *contract.Config, run string) *Uploader {
	return &Uploader{
		client: client,
		bucket: strings.TrimSpace(cfg.S3.Bucket),
		prefix: strings.Trim(cfg.S3.Prefix, "/"),
		run:    run,
		cfg:    cfg,
	}
}

// ObjectKey returns the key used for the checkpoint of stage.
func (u *Uploader) ObjectKey(stage schema.Stage) string {
	return path.Join(u.prefix, u.run, string(stage)+extension(u.cfg.Output))
}

// WriteCheckpoint implements the CheckpointSink interface.
func (u *Uploader) WriteCheckpoint(ctx context.Context, stage schema.Stage, records []schema.RepositoryRecord) error {
	if err := u.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	var buf bytes.Buffer
	if err := outwriter.WriteRecords(&buf, records, u.cfg); err != nil {
		return err
	}

	key := u.ObjectKey(stage)
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: contentType(u.cfg.Output),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	contract.LoggerFromContext(ctx).Info("Uploaded checkpoint", "stage", stage, "bucket", u.bucket, "key", key, "bytes", buf.Len())
	return nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{})
	})
	return u.initErr
}

func extension(mode schema.OutputMode) string {
	switch mode {
	case schema.CSVOut:
		return ".csv"
	case schema.ParquetOut:
		return ".parquet"
	case schema.TextOut:
		return ".txt"
	default:
		return ".json"
	}
}

func contentType(mode schema.OutputMode) string {
	switch mode {
	case schema.CSVOut:
		return "text/csv"
	case schema.ParquetOut:
		return "application/vnd.apache.parquet"
	case schema.TextOut:
		return "text/plain"
	default:
		return "application/json"
	}
}
