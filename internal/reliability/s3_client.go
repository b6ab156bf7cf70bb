package reliability

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Client uploads backup archives to an S3 bucket
type S3Client struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// S3Config holds S3 client construction parameters
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Client creates an S3 client from the ambient AWS credential chain
func NewS3Client(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Client{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With().Str("component", "s3_client").Logger(),
	}, nil
}

// UploadFile uploads a local file under the configured prefix
func (c *S3Client) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	fullKey := c.prefix + key
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fullKey, err)
	}

	c.log.Info().Str("key", fullKey).Msg("Uploaded backup archive")
	return nil
}

// RemoteBackup describes one archive stored in the bucket
type RemoteBackup struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
}

// ListBackups returns the archives under the configured prefix, newest first
func (c *S3Client) ListBackups(ctx context.Context) ([]RemoteBackup, error) {
	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]RemoteBackup, 0, len(out.Contents))
	for _, obj := range out.Contents {
		b := RemoteBackup{Key: aws.ToString(obj.Key)}
		if obj.Size != nil {
			b.SizeBytes = *obj.Size
		}
		if obj.LastModified != nil {
			b.Modified = *obj.LastModified
		}
		backups = append(backups, b)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Modified.After(backups[j].Modified) })
	return backups, nil
}

// DeleteBackup removes one archive from the bucket
func (c *S3Client) DeleteBackup(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
