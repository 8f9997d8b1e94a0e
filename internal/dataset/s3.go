package dataset

import (
	"context"
	"fmt"
	"io"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fundscope/internal/infrastructure"
)

// S3Config holds client settings for S3 or an S3-compatible endpoint such as MinIO.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// ObjectGetter is the slice of the S3 API the source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a dataset object from a bucket. Fetches go through a
// circuit breaker so a failing endpoint is not hammered by periodic reloads.
type S3Source struct {
	Bucket  string
	Key     string
	client  ObjectGetter
	breaker *infrastructure.CircuitBreaker
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewS3Source creates a source for bucket/key. breaker may be nil.
func NewS3Source(client ObjectGetter, bucket, key string, breaker *infrastructure.CircuitBreaker) *S3Source {
	return &S3Source{Bucket: bucket, Key: key, client: client, breaker: breaker}
}

// S3SourceFactory returns a SourceFactory sharing one client and breaker.
func S3SourceFactory(client ObjectGetter, breaker *infrastructure.CircuitBreaker) SourceFactory {
	return func(_ context.Context, bucket, key string) (Source, error) {
		return NewS3Source(client, bucket, key, breaker), nil
	}
}

// Open fetches the object.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	fetch := func(ctx context.Context) (any, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(s.Key),
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}

	var (
		body any
		err  error
	)
	if s.breaker != nil {
		body, err = s.breaker.Execute(ctx, fetch)
	} else {
		body, err = fetch(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return body.(io.ReadCloser), nil
}

func (s *S3Source) Name() string { return path.Base(s.Key) }

func (s *S3Source) URI() string { return "s3://" + s.Bucket + "/" + s.Key }
