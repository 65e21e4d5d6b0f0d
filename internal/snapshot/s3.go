package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3Destination.
type S3Options struct {
	Bucket string
	// Key is the object that always holds the latest snapshot.
	Key    string
	Region string
	// Endpoint selects an S3-compatible server (MinIO and similar) and
	// switches to path-style addressing.
	Endpoint string
	// HistoryPrefix, when set, also keeps every exported version as
	// <HistoryPrefix>/v<version>.json.
	HistoryPrefix string
}

// S3Destination uploads snapshots to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	opts   S3Options
}

// NewS3Destination loads AWS credentials from the default chain.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("s3 destination needs a bucket and key")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, opts: opts}, nil
}

// Write uploads data as the latest snapshot and, with a history prefix,
// as a per-version object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	keys := []string{d.opts.Key}
	if d.opts.HistoryPrefix != "" {
		if v := peekVersion(data); v > 0 {
			keys = append(keys, historyKey(d.opts.HistoryPrefix, v))
		}
	}
	for _, key := range keys {
		if err := d.put(ctx, key, data); err != nil {
			return err
		}
	}
	return nil
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(d.opts.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", d.opts.Bucket, key, err)
	}
	return nil
}

func historyKey(prefix string, version int64) string {
	return path.Join(strings.Trim(prefix, "/"), fmt.Sprintf("v%d.json", version))
}
