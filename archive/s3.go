package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds a client from static credentials. A custom endpoint
// (MinIO and friends) switches to path-style addressing.
func NewS3Store(opts S3Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	if bucket == "" || region == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket and region are required")
	}

	s3Opts := s3.Options{
		Region: region,
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		s3Opts.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""))
	}
	if endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		s3Opts.BaseEndpoint = aws.String(endpoint)
		s3Opts.UsePathStyle = true
	}

	return &S3Store{
		client: s3.New(s3Opts),
		bucket: bucket,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
