package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

func NewMinioClient(opts MinioOptions) (*minio.Client, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}
	return cli, nil
}

func ContentType(localPath string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(localPath), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "json":
		return "application/json"
	case "mp4":
		return "video/mp4"
	case "avi":
		return "video/avi"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	}
	return "application/octet-stream"
}

func UploadFileToMinio(ctx context.Context, minioCli *minio.Client, bucket, localPath, minioPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file failed: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("get file info failed: %w", err)
	}

	_, err = minioCli.PutObject(
		ctx,
		bucket,
		strings.TrimPrefix(minioPath, "/"),
		file,
		fileInfo.Size(),
		minio.PutObjectOptions{
			ContentType: ContentType(localPath),
		},
	)
	if err != nil {
		return fmt.Errorf("put object to minio failed: %w", err)
	}

	return nil
}

// Archiver uploads local artifacts into one bucket.
type Archiver struct {
	cli    *minio.Client
	bucket string
}

func NewArchiver(cli *minio.Client, bucket string) *Archiver {
	return &Archiver{cli: cli, bucket: bucket}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (a *Archiver) EnsureBucket(ctx context.Context, region string) error {
	exists, err := a.cli.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	return a.cli.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: region})
}

func (a *Archiver) Archive(ctx context.Context, localPath, objectPath string) error {
	return UploadFileToMinio(ctx, a.cli, a.bucket, localPath, objectPath)
}
