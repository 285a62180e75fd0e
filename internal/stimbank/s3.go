package stimbank

import (
	"context"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 serves stimulus content from an S3-compatible bucket (AWS S3 or MinIO),
// for rigs that pull shared stimulus libraries from lab storage.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3 bank from cfg. Credentials come from the default
// provider chain.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Driver returns the backend identifier.
func (s *S3) Driver() Driver { return DriverS3 }

// Put uploads content under key; overwriting an existing key is an error.
func (s *S3) Put(ctx context.Context, key string, r io.Reader) (Info, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &k}); err == nil {
		return Info{}, fmt.Errorf("stimulus %s already exists", key)
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &s.bucket, Key: &k, Body: r}); err != nil {
		return Info{}, fmt.Errorf("put stimulus %s: %w", key, err)
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &k})
	if err != nil {
		return Info{Key: k}, nil
	}
	return Info{Key: k, Size: aws.ToInt64(head.ContentLength)}, nil
}

// Open streams the content at key.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get stimulus %s: %w", key, err)
	}
	return out.Body, nil
}

// Head returns metadata for key.
func (s *S3) Head(ctx context.Context, key string) (Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return Info{}, fmt.Errorf("head stimulus %s: %w", key, err)
	}
	return Info{Key: key, Size: aws.ToInt64(out.ContentLength)}, nil
}

// List returns the keys under prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]Info, error) {
	var out []Info
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list stimuli: %w", err)
		}
		for _, obj := range page.Contents {
			out = append(out, Info{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}
	return out, nil
}
