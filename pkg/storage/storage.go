package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"
)

// API is the subset of the S3 client used here.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	// ErrNoFiles is returned when no object matches a key prefix.
	ErrNoFiles = errors.New("no files found")
	// ErrNoSuchBucket is returned when a bucket does not exist.
	ErrNoSuchBucket = errors.New("bucket does not exist")
)

// Store wraps an S3 client with the object operations the toolkit needs.
type Store struct {
	api    API
	logger *log.Logger
}

// New creates a Store backed by the AWS S3 client for region.
func New(ctx context.Context, logger *log.Logger, region string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithAPI(logger, s3.NewFromConfig(cfg)), nil
}

// NewWithAPI wraps an existing S3 API implementation.
func NewWithAPI(logger *log.Logger, api API) *Store {
	return &Store{api: api, logger: logger}
}

// ListKeys returns every key in bucket under prefix, sorted.
func (s *Store) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, wrapBucketError(err, "failed to list objects in "+bucket)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetObject returns the full body of bucket/key.
func (s *Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapBucketError(err, fmt.Sprintf("failed to get %s/%s", bucket, key))
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// PutObject writes body to bucket/key.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return wrapBucketError(err, fmt.Sprintf("failed to put %s/%s", bucket, key))
	}
	return nil
}

// ConcatenateFiles joins every object under prefix, in key order, into a new
// object outputKey in the same bucket.
func (s *Store) ConcatenateFiles(ctx context.Context, bucket, prefix, outputKey string) error {
	keys, err := s.ListKeys(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w in bucket %s with key prefix: %s", ErrNoFiles, bucket, prefix)
	}

	var buf bytes.Buffer
	for _, key := range keys {
		body, err := s.GetObject(ctx, bucket, key)
		if err != nil {
			return err
		}
		buf.Write(body)
		s.logger.Debug("added file to concatenation", "key", key, "bytes", len(body))
	}
	if err := s.PutObject(ctx, bucket, outputKey, buf.Bytes()); err != nil {
		return err
	}
	s.logger.Info("concatenated files", "bucket", bucket, "prefix", prefix, "count", len(keys), "output", outputKey)
	return nil
}

// MoveFile copies key from source to destination and then deletes it from
// source. An existing destination object is replaced.
func (s *Store) MoveFile(ctx context.Context, key, sourceBucket, destinationBucket string) error {
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(destinationBucket),
		CopySource: aws.String(sourceBucket + "/" + key),
		Key:        aws.String(key),
	})
	if err != nil {
		return wrapBucketError(err, fmt.Sprintf("failed to copy %s to %s", key, destinationBucket))
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(sourceBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapBucketError(err, fmt.Sprintf("failed to delete %s from %s", key, sourceBucket))
	}
	s.logger.Info("moved file", "key", key, "from", sourceBucket, "to", destinationBucket)
	return nil
}

func wrapBucketError(err error, msg string) error {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%s: %w", msg, ErrNoSuchBucket)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		return fmt.Errorf("%s: %w", msg, ErrNoSuchBucket)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
