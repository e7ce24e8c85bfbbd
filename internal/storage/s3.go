package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store presigns against a single bucket.
type S3Store struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
	now       func() time.Time
}

// S3Options tune NewS3Store. Endpoint is set for S3-compatible services such
// as LocalStack or MinIO.
type S3Options struct {
	Region   string
	Endpoint string
	Expiry   time.Duration
}

// NewS3Store loads the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket string, opts S3Options) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(s3.NewPresignClient(client), bucket, opts.Expiry), nil
}

func newS3Store(p *s3.PresignClient, bucket string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &S3Store{presigner: p, bucket: bucket, expiry: expiry, now: time.Now}
}

// PresignUpload returns a PUT URL for a new object under scope.
func (s *S3Store) PresignUpload(ctx context.Context, scope, fileName string) (Upload, error) {
	key := ObjectKey(scope, fileName)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to presign put object: %w", err)
	}
	return Upload{URL: req.URL, Key: key, ExpiresAt: s.now().Add(s.expiry)}, nil
}

// PresignDownload returns a GET URL for key.
func (s *S3Store) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}

var _ FileStore = (*S3Store)(nil)
