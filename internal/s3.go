package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const multipartPartSize = 10 * 1024 * 1024

type S3Config struct {
	// Endpoint is a custom base endpoint, e.g. "http://127.0.0.1:9000"
	// for minio. Empty means the default AWS resolution chain.
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

var _ RemoteStore = (*S3Remote)(nil)

// S3Remote mirrors tenant artifact sets in an S3 (or minio) bucket
// under tenants/<id>/<filename>. The metadata file is uploaded last so
// an interrupted upload is never mistaken for a complete set.
type S3Remote struct {
	client *s3.Client
	bucket string
}

func NewS3Remote(ctx context.Context, cfg S3Config) (*S3Remote, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 remote: bucket required")
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
			o.UsePathStyle = true
		})
	} else {
		sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(sdkConfig)
	}

	return &S3Remote{client: client, bucket: cfg.Bucket}, nil
}

func tenantPrefix(tenant TenantID) string {
	return "tenants/" + tenant.String() + "/"
}

func (r *S3Remote) Exists(ctx context.Context, tenant TenantID) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(tenantPrefix(tenant) + MetadataFilename),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head %s artifacts: %w", tenant, err)
	}
	return true, nil
}

// Download fetches every object under the tenant prefix into destDir.
// Any missed object fails the whole download.
func (r *S3Remote) Download(ctx context.Context, tenant TenantID, destDir string) error {
	prefix := tenantPrefix(tenant)
	listing, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("list %s artifacts: %w", tenant, err)
	}
	if len(listing.Contents) == 0 {
		return fmt.Errorf("no remote artifacts for tenant %s", tenant)
	}

	downloader := manager.NewDownloader(r.client, func(d *manager.Downloader) {
		d.PartSize = multipartPartSize
	})

	for _, obj := range listing.Contents {
		key := aws.ToString(obj.Key)
		buffer := manager.NewWriteAtBuffer([]byte{})
		_, err := downloader.Download(ctx, buffer, &s3.GetObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}
		name := path.Base(key)
		if err := os.WriteFile(filepath.Join(destDir, name), buffer.Bytes(), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	log.Info("downloaded remote artifacts", "tenant", tenant, "objects", len(listing.Contents))
	return nil
}

// Upload pushes every file in srcDir under the tenant prefix. Files
// are ordered so the metadata marker lands last.
func (r *S3Remote) Upload(ctx context.Context, tenant TenantID, srcDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("read artifact dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == MetadataFilename {
			return false
		}
		if names[j] == MetadataFilename {
			return true
		}
		return names[i] < names[j]
	})

	uploader := manager.NewUploader(r.client, func(u *manager.Uploader) {
		u.PartSize = multipartPartSize
	})

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(tenantPrefix(tenant) + name),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}

	log.Info("uploaded artifacts to remote", "tenant", tenant, "objects", len(names))
	return nil
}
