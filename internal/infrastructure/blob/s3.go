package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"sheetbridge/internal/core/apperror"
)

// S3Config holds explicit construction parameters. Credentials come from the default
// AWS chain.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; enables a custom endpoint such as MinIO
	PathStyle bool
}

// S3ConfigFromEnv reads SHEETS_S3_REGION, SHEETS_S3_ENDPOINT and SHEETS_S3_PATH_STYLE.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:    os.Getenv("SHEETS_S3_REGION"),
		Endpoint:  os.Getenv("SHEETS_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("SHEETS_S3_PATH_STYLE"), "true"),
	}
}

// S3Store implements Store on a single bucket. Keys map to object keys directly.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3 creates a store from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg.Bucket), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Driver implements Store.
func (s *S3Store) Driver() Driver { return DriverS3 }

// Get streams the object at key.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, apperror.NewNotFound("object", "s3://"+s.bucket+"/"+key)
		}
		return nil, apperror.NewBackend(string(DriverS3), err)
	}
	return out.Body, nil
}

// Put uploads r to key, replacing any existing object. The body is buffered so the
// request can be signed and retried.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return apperror.NewBackend(string(DriverS3), err)
	}
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return apperror.NewBackend(string(DriverS3), err)
	}
	return nil
}

// List returns the keys directly below dir, following continuation tokens.
func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := strings.TrimSuffix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix, ContinuationToken: token})
		if err != nil {
			return nil, apperror.NewBackend(string(DriverS3), err)
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if !strings.Contains(strings.TrimPrefix(k, prefix), "/") {
				keys = append(keys, k)
			}
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)
	return keys, nil
}
